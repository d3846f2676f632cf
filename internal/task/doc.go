// Package task contains the background processing machinery: the
// analyze queue and worker pool that verify archived snapshots against
// source URLs, the write queue and worker that commit archive parameters
// back to the page, and the event handlers that connect both to the
// domain events emitted by the task service.
package task
