// Package types defines the ordered column/value model, the Store interfaces
// that database adapters implement, validation error types, and the standard
// errors of the activerow persistence layer.
package types
