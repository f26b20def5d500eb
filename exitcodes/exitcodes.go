// Package exitcodes defines the standard exit codes used by parabatch.
package exitcodes

// Exit code constants used by parabatch
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when the whole suite ran and every case passed
// * TestFailure (1): Used when the suite ran but recorded failures, errors or warnings
// * RuntimeErr (2): Used for runtime errors such as an unreadable manifest, unlaunchable workers or panics
const (
	Success     = 0 // Suite ran clean
	TestFailure = 1 // Suite ran with failures
	RuntimeErr  = 2 // Runtime errors or timeouts
)
