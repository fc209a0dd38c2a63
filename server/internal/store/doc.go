// Package store holds recent simulation runs in memory, keyed by run ID,
// and evicts them once they are older than the configured TTL.
package store
