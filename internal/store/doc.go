// Package store defines the persistence interfaces and shared errors for
// the task/source aggregate. Implementations live under
// internal/platform; services depend only on these interfaces so that
// storage mechanics stay swappable and testable.
package store
