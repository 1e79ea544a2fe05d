// Package exitcodes defines the standard exit codes used by integ-acceptor.
package exitcodes

// Exit code constants used by integ-acceptor.
//
// * Success (0): the run's final test attempt passed
// * TestFailure (1): generic test failure when no attempt exit code is
//   available; a failed run normally exits with the last attempt's own code
// * RuntimeErr (2): configuration errors, spawn failures and environment
//   start failures
const (
	Success     = 0
	TestFailure = 1
	RuntimeErr  = 2
)
