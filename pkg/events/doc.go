// Package events is the append-only audit log of organization and
// membership mutations.
package events
