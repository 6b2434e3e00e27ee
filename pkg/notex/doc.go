// Package notex wires the note-taking application together: configuration,
// store selection, the HTTP API and the command line entry point.
//
// The package follows a command pattern: Parse turns command line arguments
// into a [Command] plus a [Config], New builds an [App] around the selected
// store and session backends, and Main dispatches the command to the matching
// App method. Tests drive Main or App directly without building the binary.
package notex
