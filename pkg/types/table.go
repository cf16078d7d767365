package types

import (
	"errors"
	"fmt"
)

// SequenceStrategy says how a table's identity column gets its value.
type SequenceStrategy string

// Sequence strategies.
const (
	// SequenceNone: the caller supplies the key.
	SequenceNone SequenceStrategy = "none"
	// SequenceNamed: the key is fetched from a named sequence before insert.
	SequenceNamed SequenceStrategy = "sequence"
	// SequenceIdentity: the store generates the key (auto-increment,
	// SERIAL, IDENTITY).
	SequenceIdentity SequenceStrategy = "identity"
	// SequenceUUID: a UUID v7 is generated client-side before insert.
	SequenceUUID SequenceStrategy = "uuid"
)

var knownSequences = map[SequenceStrategy]bool{
	"":               true,
	SequenceNone:     true,
	SequenceNamed:    true,
	SequenceIdentity: true,
	SequenceUUID:     true,
}

// Table spec errors.
var (
	ErrTableNameEmpty       = errors.New("table name must not be empty")
	ErrSequenceUnknown      = errors.New("unknown sequence strategy")
	ErrSequenceNameRequired = errors.New("sequence strategy requires a sequence name")
)

// TableSpec describes one logical table.
type TableSpec struct {
	Name         string           `json:"name" yaml:"name" mapstructure:"name"`
	Schema       string           `json:"schema,omitempty" yaml:"schema,omitempty" mapstructure:"schema"`
	PrimaryKey   []string         `json:"primary_key,omitempty" yaml:"primary_key,omitempty" mapstructure:"primary_key"`
	Sequence     SequenceStrategy `json:"sequence,omitempty" yaml:"sequence,omitempty" mapstructure:"sequence"`
	SequenceName string           `json:"sequence_name,omitempty" yaml:"sequence_name,omitempty" mapstructure:"sequence_name"`
}

// Validate checks that the TableSpec is well-formed.
func (s TableSpec) Validate() error {
	if s.Name == "" {
		return ErrTableNameEmpty
	}
	if !knownSequences[s.Sequence] {
		return fmt.Errorf("%w: %q", ErrSequenceUnknown, s.Sequence)
	}
	if s.Sequence == SequenceNamed && s.SequenceName == "" {
		return ErrSequenceNameRequired
	}
	return nil
}

// QualifiedName returns schema.name, or name when there is no schema.
func (s TableSpec) QualifiedName() string {
	if s.Schema == "" {
		return s.Name
	}
	return s.Schema + "." + s.Name
}
