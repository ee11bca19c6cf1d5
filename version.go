// Package repeat runs an external test command many times and records
// how often it fails.
package repeat

// Version is the release version of the repeat tool.
const Version = "v0.1.0"
