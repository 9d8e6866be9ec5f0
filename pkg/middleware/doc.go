// Package middleware provides the HTTP request pipeline: bearer token
// authentication, per-organization principal resolution, and Redis-backed
// rate limiting.
package middleware
