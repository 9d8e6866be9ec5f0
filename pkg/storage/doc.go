// Package storage opens and tunes the connections behind the persistence
// layer: the primary PostgreSQL database and the Redis instance used for
// the ability cache and rate limiting. The per-domain stores themselves
// live next to their schemas in the packages that own them.
package storage
