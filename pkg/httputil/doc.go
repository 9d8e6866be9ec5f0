// Package httputil provides shared HTTP plumbing: JSON encoding, request
// parsing, and the mapping from service-layer errors to status codes.
package httputil
