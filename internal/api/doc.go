// Package api contains the HTTP handlers, request/response models, and
// error mapping for the render and account endpoints.
package api
