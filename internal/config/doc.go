// Package config loads the action kit daemon configuration from YAML,
// fills defaults, applies environment overrides for secrets and validates
// the result.
package config
