package defaults

// Exit codes for the CLI.
const (
	ExitSuccess        = 0 // Clean exit, peer compliant
	ExitNonCompliant   = 1 // Run completed with failed test cases
	ExitUserError      = 2 // Invalid arguments or configuration
	ExitTransportError = 3 // Transport failure aborted the run
	ExitInternalError  = 4 // Unexpected internal error
)
