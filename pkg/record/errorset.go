// This file implements the per-save error aggregator.
package record

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/mesh-intelligence/activerow/pkg/types"
)

// ErrorSet collects the validation errors raised during one save cycle.
// Errors are keyed by a content hash, so pushing the same error twice keeps
// one copy. Insertion order is preserved.
type ErrorSet struct {
	resource string
	order    []string
	byHash   map[string]types.ValidationError
}

func newErrorSet(resource string) *ErrorSet {
	return &ErrorSet{resource: resource, byHash: make(map[string]types.ValidationError)}
}

// Push adds e. An empty code becomes CodeUnknown and an empty resource
// becomes the row's resource.
func (s *ErrorSet) Push(e types.ValidationError) {
	if e.Code == "" {
		e.Code = types.CodeUnknown
	}
	if e.Resource == "" {
		e.Resource = s.resource
	}
	h := errorHash(e)
	if _, ok := s.byHash[h]; ok {
		return
	}
	s.byHash[h] = e
	s.order = append(s.order, h)
}

// Add is shorthand for Push with a field-level error.
func (s *ErrorSet) Add(code, field, message string) {
	s.Push(types.ValidationError{Code: code, Field: field, Message: message})
}

// Len returns the number of distinct errors.
func (s *ErrorSet) Len() int { return len(s.order) }

// Errors returns the errors in the order they were first pushed.
func (s *ErrorSet) Errors() []types.ValidationError {
	if len(s.order) == 0 {
		return nil
	}
	out := make([]types.ValidationError, len(s.order))
	for i, h := range s.order {
		out[i] = s.byHash[h]
	}
	return out
}

// Has reports whether an error was pushed for field.
func (s *ErrorSet) Has(field string) bool {
	for _, h := range s.order {
		if s.byHash[h].Field == field {
			return true
		}
	}
	return false
}

func (s *ErrorSet) failure() error {
	return &types.ValidationFailedError{Resource: s.resource, Errors: s.Errors()}
}

// errorHash is the SHA-256 of the error's fields, NUL separated.
func errorHash(e types.ValidationError) string {
	h := sha256.New()
	for _, part := range []string{e.Code, e.Field, e.Message, e.Resource} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
