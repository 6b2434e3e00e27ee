package notex

import (
	"net/http"
	"strings"

	"github.com/imkrishn/notex/pkg/models"
	"github.com/imkrishn/notex/pkg/session"
)

// Authentication handlers. Credential verification is an external concern;
// these endpoints map a known email address to a bearer token and a session
// record in the token store. Everything behind the API consumes the resolved
// models.Session, never the raw token.

type signUpRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type signInRequest struct {
	Email string `json:"email"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func (a *App) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.Email == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "email and name are required")
		return
	}

	existing, err := a.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "user already exists")
		return
	}

	user := &models.User{Email: req.Email, Name: req.Name}
	if err := a.store.CreateUser(r.Context(), user); err != nil {
		a.respondStoreError(w, err)
		return
	}

	token, err := a.startSession(r, user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (a *App) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	user, err := a.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		respondError(w, http.StatusUnauthorized, "unknown user")
		return
	}

	token, err := a.startSession(r, user)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (a *App) handleSignOut(w http.ResponseWriter, r *http.Request) {
	token := getTokenFromHeader(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if err := a.sessions.Delete(r.Context(), token); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (a *App) handleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := a.requireSession(w, r)
	if !ok {
		return
	}
	user, err := a.store.GetUser(r.Context(), sess.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "user not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (a *App) startSession(r *http.Request, user *models.User) (string, error) {
	token, err := session.NewToken()
	if err != nil {
		return "", err
	}
	sess := models.Session{UserID: user.ID, Email: user.Email}
	if err := a.sessions.Save(r.Context(), token, sess, session.DefaultTTL); err != nil {
		return "", err
	}
	return token, nil
}

// requireSession resolves the caller's session from the Authorization header.
// On failure it writes a 401 and returns ok=false; handlers just return.
func (a *App) requireSession(w http.ResponseWriter, r *http.Request) (models.Session, bool) {
	token := getTokenFromHeader(r)
	if token == "" {
		respondError(w, http.StatusUnauthorized, "missing bearer token")
		return models.Session{}, false
	}
	sess, err := a.sessions.Get(r.Context(), token)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return models.Session{}, false
	}
	if sess == nil {
		respondError(w, http.StatusUnauthorized, "invalid or expired token")
		return models.Session{}, false
	}
	return *sess, true
}

// getTokenFromHeader extracts the bearer token from the Authorization header.
// Returns an empty string when the header is missing or not a Bearer scheme.
func getTokenFromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
