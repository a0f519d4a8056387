package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedesk/internal/receipt/models"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementOutcome(models.OutcomeIssued)
	m.IncrementOutcome(models.OutcomeIssued)
	m.IncrementOutcome(models.OutcomeDuplicate)
	m.ObserveStage(models.StageConvert, time.Now().Add(-2*time.Second))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Receipts.WithLabelValues(models.OutcomeIssued)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Receipts.WithLabelValues(models.OutcomeDuplicate)))

	n, err := testutil.GatherAndCount(reg, "feedesk_receipt_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
