// Package collections provides storage for organization collections and the
// per-member and per-group access grants attached to them.
package collections
