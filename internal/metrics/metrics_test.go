package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveStatement(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.ObserveStatement("items", "insert", 3*time.Millisecond, nil)
	r.ObserveStatement("items", "insert", time.Millisecond, nil)
	r.ObserveStatement("items", "update", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(r.statements.WithLabelValues("items", "insert", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.statements.WithLabelValues("items", "update", StatusError)))
	assert.Equal(t, 2, testutil.CollectAndCount(r.durations))
}

func TestObserveSave(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	r, err := New(reg)
	require.NoError(t, err)

	r.ObserveSave("item", "inserted")
	r.ObserveSave("item", "invalid")
	r.ObserveSave("item", "invalid")

	expected := `
# HELP activerow_row_saves_total Row save cycles, by resource and outcome.
# TYPE activerow_row_saves_total counter
activerow_row_saves_total{outcome="inserted",resource="item"} 1
activerow_row_saves_total{outcome="invalid",resource="item"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "activerow_row_saves_total"))
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveStatement("items", "insert", time.Millisecond, nil)
		r.ObserveSave("item", "inserted")
	})
}

func TestUnregisteredRecorder(t *testing.T) {
	r, err := New(nil)
	require.NoError(t, err)
	r.ObserveSave("item", "updated")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.saves.WithLabelValues("item", "updated")))
}
