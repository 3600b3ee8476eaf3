package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterVecValue reads the current value of one label of a CounterVec
// without going through the HTTP exposition path, for introspection by
// tests and alert-threshold checks.
func counterVecValue(vec *prometheus.CounterVec, label string) float64 {
	counter, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}

	var m dto.Metric
	if err := counter.Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// histogramVecCount reads the sample count of one label of a HistogramVec.
func histogramVecCount(vec *prometheus.HistogramVec, label string) uint64 {
	observer, err := vec.GetMetricWithLabelValues(label)
	if err != nil {
		return 0
	}

	histogram, ok := observer.(prometheus.Histogram)
	if !ok {
		return 0
	}

	var m dto.Metric
	if err := histogram.Write(&m); err != nil {
		return 0
	}
	return m.GetHistogram().GetSampleCount()
}
