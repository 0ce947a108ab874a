// Package render defines the boundary between the orchestration core and
// external animation providers. It contains the provider-facing interface,
// the job state machine, and the error taxonomy shared by all provider
// implementations.
package render
