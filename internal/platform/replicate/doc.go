// Package replicate implements the render.Animator interface against a
// Replicate-style asynchronous predictions API: one POST to submit a job,
// then GETs against the returned poll URL until a terminal status.
package replicate
