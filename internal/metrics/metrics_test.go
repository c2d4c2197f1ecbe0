package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	first := New()
	second := New()

	first.RecurringOutcomes.WithLabelValues(OutcomeExecuted).Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(first.RecurringOutcomes.WithLabelValues(OutcomeExecuted)))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.RecurringOutcomes.WithLabelValues(OutcomeExecuted)))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.SchedulerTicks.WithLabelValues("ok").Inc()
	m.TransactionsCommitted.WithLabelValues("credit").Add(2)

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, recorder.Code)
	body := recorder.Body.String()
	assert.True(t, strings.Contains(body, `scheduler_ticks_total{result="ok"} 1`))
	assert.True(t, strings.Contains(body, `ledger_transactions_committed_total{direction="credit"} 2`))
}
