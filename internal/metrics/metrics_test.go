package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/corvidlabs/axengine/internal/model"
)

func TestObserveCommandIncrementsByLabel(t *testing.T) {
	m := New("test", zerolog.Nop())

	m.ObserveCommand(model.CmdQuery, "success")
	m.ObserveCommand(model.CmdQuery, "success")
	m.ObserveCommand(model.CmdQuery, "error")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.commandsTotal.WithLabelValues("query", "success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.commandsTotal.WithLabelValues("query", "error")))
}

func TestObserveErrorIncrementsByCode(t *testing.T) {
	m := New("test", zerolog.Nop())

	m.ObserveError("element_not_found")
	m.ObserveError("element_not_found")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.commandErrorsTotal.WithLabelValues("element_not_found")))
}

func TestSetObserverSubscriptionsReportsGauge(t *testing.T) {
	m := New("test", zerolog.Nop())

	m.SetObserverSubscriptions(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.observerSubscriptions))

	m.SetObserverSubscriptions(1)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.observerSubscriptions))
}

func TestObserveLocatorSearchRecordsSamples(t *testing.T) {
	m := New("test", zerolog.Nop())

	m.ObserveLocatorSearch(5*time.Millisecond, "found")
	m.ObserveLocatorSearch(10*time.Millisecond, "not_found")

	assert.Equal(t, 2, testutil.CollectAndCount(m.locatorSearchSeconds))
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCommand(model.CmdQuery, "success")
		m.ObserveError("internal_error")
		m.SetObserverSubscriptions(1)
		m.ObserveLocatorSearch(time.Millisecond, "found")
	})
}
