// Package errors provides coded, actionable errors for the billform CLI
// and configuration loader.
//
// Every error carries a code (e.g. "E101") that maps to a registered
// template with a short message and a longer explanation. Errors may point
// at a location in a file, in which case the surrounding lines are shown:
//
//	err := errors.New("E101").
//	    WithLocation("billform.yaml", 7, 3).
//	    WithSuggestion("durations are written like 30s or 2m")
//
//	errors.PrintError(err)
//	// ERROR E101: Invalid configuration file
//	//
//	//   billform.yaml:7:3
//	//
//	//        5 │ server:
//	//        6 │   address: ":8080"
//	//   →    7 │   shutdown_timeout: soon
//	//          │   ^
//	//
//	//   Hint: durations are written like 30s or 2m
//
// # Categories
//
//   - config: configuration files and environment overrides
//   - locale: label catalogs and override directories
//   - export: document stores
//   - cli: command-line usage
package errors
