// Package httputil carries the shared HTTP plumbing: JSON request and
// response helpers, path and query parameter parsing over gorilla/mux, and
// the request-ID, logging, and panic-recovery middleware the server mounts
// in front of every route.
package httputil
