package middleware

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValue reads the current value of a single counter.
func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	return m.GetCounter().GetValue()
}

// findFamily gathers reg and returns the named metric family, or nil.
func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func TestMetrics_Register(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()

	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	m.IncRateLimitRequests("/api/predict-colleges", "memory")
	m.IncRateLimitBlocked("/api/predict-colleges", "memory")

	for _, name := range []string{MetricRateLimitRequests, MetricRateLimitBlocked} {
		if findFamily(t, reg, name) == nil {
			t.Errorf("metric %s not found in registry", name)
		}
	}
}

func TestMetrics_RegisterTwiceFails(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register() failed: %v", err)
	}
	if err := m.Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}

func TestMetrics_RateLimitLabels(t *testing.T) {
	m := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() failed: %v", err)
	}

	m.IncRateLimitRequests("/api/predict-colleges", "redis")
	m.IncRateLimitRequests("/api/predict-colleges", "redis")
	m.IncRateLimitRequests("/api/categories", "memory")

	mf := findFamily(t, reg, MetricRateLimitRequests)
	if mf == nil {
		t.Fatal("rate_limit_requests_total metric not found")
	}
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, metric := range mf.GetMetric() {
		if labelValue(metric, "path") == "/api/predict-colleges" {
			if got := metric.GetCounter().GetValue(); got != 2 {
				t.Errorf("expected 2 predict checks, got %v", got)
			}
			if store := labelValue(metric, "store"); store != "redis" {
				t.Errorf("expected store=redis, got %q", store)
			}
		}
	}
}

func TestMetrics_Collectors(t *testing.T) {
	m := NewMetrics()
	if got := len(m.Collectors()); got != 7 {
		t.Errorf("expected 7 collectors, got %d", got)
	}
}
