// Package api contains the HTTP surface: request/response models, the
// task handlers, the websocket stream handler and the error-to-status
// mapping that keeps internal error details out of client responses.
package api
