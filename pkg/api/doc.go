// Package api exposes the organization and membership operations over HTTP.
//
// Routes are registered on a gorilla/mux router. All endpoints require a
// bearer token; endpoints under /organizations/{orgID} additionally resolve
// the caller's membership into an acting principal before the handler runs.
// Sign-up and invite acceptance are the exceptions, since the caller holds
// no membership yet at that point.
package api
