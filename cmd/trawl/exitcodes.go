package main

// Exit codes
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitNoResults   = 2 // No candidate records found for the question
	ExitConfigError = 3 // Configuration error (missing file, invalid values)
)
