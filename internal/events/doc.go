// Package events defines the domain events published by the pipeline and
// a synchronous in-memory emitter that fans them out to registered
// handlers. Handlers must treat delivery order across tasks as
// unspecified; only the entity snapshots carried by events are reliable.
package events
