// Package sentinel provides a const-declarable error type for sentinel errors.
//
// Sentinel errors built with errors.New are package-level vars that can be
// reassigned by mistake. Error is a string-based error type that can be
// declared as a const instead, keeping sentinel errors immutable while
// remaining comparable through errors.Is across wrapped chains.
package sentinel
