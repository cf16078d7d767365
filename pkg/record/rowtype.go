package record

import (
	"context"
	"time"
)

// DefaultTouchColumn is stamped with the current time on every save that
// writes, when the table has such a column.
const DefaultTouchColumn = "updated_at"

// NoTouchColumn disables touch stamping when used as RowType.TouchColumn.
const NoTouchColumn = "-"

// HookFunc runs at a point of the save lifecycle. It may push errors onto
// errs; a pre-hook that leaves errors behind stops the save with a
// validation failure. A returned error aborts the save as is.
type HookFunc func(ctx context.Context, row *Row, errs *ErrorSet) error

// Hooks are the lifecycle callbacks of a row type. Nil hooks are skipped.
type Hooks struct {
	PreSave    HookFunc
	PreInsert  HookFunc
	PreUpdate  HookFunc
	PostSave   HookFunc
	PostInsert HookFunc
	PostUpdate HookFunc
}

// RowType describes the behaviour shared by the rows of one table.
type RowType struct {
	// Resource names the rows in error reports. Required.
	Resource string

	// Required lists columns that must hold a non-empty value on save.
	Required []string

	// Getters transform a column value on read; Setters on write.
	Getters map[string]func(any) any
	Setters map[string]func(any) any

	Hooks Hooks

	// TouchColumn defaults to DefaultTouchColumn; NoTouchColumn disables it.
	TouchColumn string
}

func (rt RowType) touchColumn() string {
	switch rt.TouchColumn {
	case "":
		return DefaultTouchColumn
	case NoTouchColumn:
		return ""
	}
	return rt.TouchColumn
}

// Observer receives statement timings and save outcomes. See
// internal/metrics for the Prometheus implementation.
type Observer interface {
	ObserveStatement(table, shape string, elapsed time.Duration, err error)
	ObserveSave(resource, outcome string)
}

// Save outcomes reported to Observer.ObserveSave.
const (
	OutcomeInserted  = "inserted"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
	OutcomeInvalid   = "invalid"
	OutcomeFailed    = "failed"
)

type nopObserver struct{}

func (nopObserver) ObserveStatement(string, string, time.Duration, error) {}
func (nopObserver) ObserveSave(string, string)                             {}
