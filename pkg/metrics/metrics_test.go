package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetrics_ExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "sweep-unapplied-events"
	m.ObserveDuration(job, 250*time.Millisecond)
	m.IncSuccess(job)
	m.IncFailure(job)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "job_success", "job", job)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = fetchCounterValue(mfs, "job_failure", "job", job)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	sum, err := fetchHistogramSum(mfs, "job_duration_seconds", "job", job)
	require.NoError(t, err)
	assert.Greater(t, sum, float64(0))
}

func TestCronJobMetrics_EmptyJobName(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.IncSuccess("")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "job_success", "job", "unknown")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)
}

func TestWebhookMetrics_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.Inc(OutcomeReceived)
	m.Inc(OutcomeReceived)
	m.Inc(OutcomeDuplicate)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterValue(mfs, "webhook_events_total", "outcome", OutcomeReceived)
	require.NoError(t, err)
	assert.Equal(t, float64(2), got)

	got, err = fetchCounterValue(mfs, "webhook_events_total", "outcome", OutcomeDuplicate)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var w *WebhookMetrics
	var c *CronJobMetrics
	assert.NotPanics(t, func() {
		w.Inc(OutcomeApplied)
		c.IncSuccess("job")
		c.IncFailure("job")
		c.ObserveDuration("job", time.Second)
		NewWebhookMetrics(nil).Inc(OutcomeApplied)
		NewCronJobMetrics(nil).IncSuccess("job")
	})
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, lp := range labels {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}
