package runtime

import (
	"github.com/justapithecus/rlfeed/client"
	"github.com/justapithecus/rlfeed/types"
)

// Exit codes for rlfeed run.
const (
	ExitSuccess      = 0 // input exhausted, client closed cleanly
	ExitStreamError  = 1 // fatal dispatch error
	ExitInitError    = 2 // configuration or client initialization failed
	ExitStorageError = 3 // senders failed to flush or close at shutdown
)

// DetermineExitCode maps the run error and the shutdown error to an exit
// code. Initialization failures win over stream failures, which win over
// shutdown failures.
func DetermineExitCode(runErr, closeErr error) int {
	switch {
	case runErr != nil && client.IsInitializationError(runErr):
		return ExitInitError
	case runErr != nil:
		return ExitStreamError
	case closeErr != nil:
		return ExitStorageError
	default:
		return ExitSuccess
	}
}

// statusFor maps an exit code to the published run status.
func statusFor(code int) types.RunStatus {
	if code == ExitSuccess {
		return types.RunStatusCompleted
	}
	return types.RunStatusFailed
}
