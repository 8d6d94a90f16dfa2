// Package api serves the action kit over HTTP: listing the active actions,
// invoking them by name and reading the invocation history.
package api
