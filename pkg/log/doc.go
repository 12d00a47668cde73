// Package log provides structured logging for Ocre using zerolog.
//
// Call Init once (the CLI and supervisor daemon do this from their
// --log-level/--log-json flags); every package-level helper and the
// WithComponent/WithContainerID/WithModule/WithRuntime child-logger
// constructors read from the resulting global Logger.
package log
