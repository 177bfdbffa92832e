package app

// Command is a top-level startup mode.
type Command string

const (
	// CommandServe starts the HTTP API server and the Job Runner
	// together under a shared Run Group Supervisor.
	CommandServe Command = "serve"
	// CommandMigrate applies all pending database migrations.
	CommandMigrate Command = "migrate"
	// CommandHealthcheck performs a lightweight liveness probe — for
	// a distroless container's HEALTHCHECK, where no shell or curl is
	// available to script one externally.
	CommandHealthcheck Command = "healthcheck"
	// CommandCreateUser creates a user account from the command line,
	// for bootstrapping the first account on a fresh deployment. It is
	// selected by "create-user" or by "users setup-admin".
	CommandCreateUser Command = "create-user"
)

// ParseCommand resolves the subcommand from argv[1:]. Absent or
// unrecognized input defaults to CommandServe.
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "create-user":
		return CommandCreateUser
	case "users":
		if len(args) > 1 && args[1] == "setup-admin" {
			return CommandCreateUser
		}
		return CommandServe
	default:
		return CommandServe
	}
}
