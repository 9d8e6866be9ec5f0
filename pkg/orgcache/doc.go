// Package orgcache keeps per-organization feature flags hot for the
// request path.
package orgcache
