// Package database opens tuned database/sql pools for the supported
// drivers, PostgreSQL for deployments and SQLite for local development.
package database
