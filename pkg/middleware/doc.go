// Package middleware holds HTTP middleware that depends on shared
// infrastructure, currently Redis-backed rate limiting. Middleware with no
// external dependencies lives in pkg/httputil; access-control middleware
// lives in pkg/rbac.
package middleware
