// Package service implements the task service: the only component
// allowed to mutate the task/source aggregate. All status changes flow
// through it so that transition rules, event emission and transactional
// boundaries live in one place.
package service
