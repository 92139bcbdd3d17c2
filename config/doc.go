// Package config loads taskscale settings from YAML files, environment
// variables and command-line overrides, in that order of precedence:
// defaults < YAML file < environment variables < command-line flags.
//
// Environment variables are the env tag of a field with the loader prefix
// (TS_ by default), e.g. TS_HARNESS_POOL_SIZE=4.
package config
