// Package domain defines the core business entities of the citation
// archiving pipeline: tasks, the sources they own, and the memento
// candidates considered for each source. Entities validate themselves
// and expose their status transitions as methods; status aggregation
// lives in ResolveTaskStatus so it can be recomputed idempotently from
// the current source set regardless of event delivery order.
package domain
