// Package common holds the plumbing shared by every vsdb package: the
// dragonboat logger factory with the vsdb log format and the error
// taxonomy used by the allocator, the version manager and the store.
package common
