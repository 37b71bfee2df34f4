// Package config loads application configuration from the environment.
//
// Every setting is an ORGKIT_* environment variable with a sensible
// default; only the database URL is mandatory. LoadConfig validates the
// result so a misconfigured process fails at startup rather than on the
// first request.
package config
