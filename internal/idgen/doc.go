// Package idgen generates the identifiers used for tasks, lifecycle events
// and queued messages. Callers treat them as opaque strings; the concrete
// format may change.
package idgen
