package notex

// Command is a discrete application operation with its specific options.
// Commands are created by Parse from command line arguments and executed by
// the matching method on [App].
type Command interface {
	// Name returns the command identifier used for routing. It matches the
	// CLI sub-command name.
	Name() string
}

// MigrateCommand initializes or updates the database schema to match the
// current data model. It is safe to run repeatedly; only missing schema
// elements are created.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }

// RunCommand starts the HTTP server. All configuration comes from the
// application [Config]; the struct exists so run-specific options can be
// added without changing the dispatch code.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }
