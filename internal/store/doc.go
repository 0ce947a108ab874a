// Package store defines the persistence interfaces consumed by the
// application core, independent of any backing technology.
package store
