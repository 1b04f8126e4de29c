package ga4

import (
	"testing"
	"time"

	analyticsdata "google.golang.org/api/analyticsdata/v1beta"
)

func TestLastDays(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		days  int
		start string
		end   string
	}{
		{30, "2025-05-16", "2025-06-14"},
		{7, "2025-06-08", "2025-06-14"},
		{1, "2025-06-14", "2025-06-14"},
	}

	for _, tt := range tests {
		w := LastDays(now, tt.days)
		if w.Start != tt.start || w.End != tt.end {
			t.Errorf("LastDays(%d) = %s..%s, want %s..%s", tt.days, w.Start, w.End, tt.start, tt.end)
		}
	}
}

func TestMetricConversion(t *testing.T) {
	row := &analyticsdata.Row{
		MetricValues: []*analyticsdata.MetricValue{
			{Value: "142"},
			{Value: "0.3817"},
			{Value: "97.0"},
			{Value: "garbage"},
		},
	}

	if got := metricInt(row, 0); got != 142 {
		t.Errorf("metricInt(0) = %d, want 142", got)
	}
	if got := metricFloat(row, 1); got != 0.3817 {
		t.Errorf("metricFloat(1) = %v, want 0.3817", got)
	}
	// Count metrics sometimes arrive in float form.
	if got := metricInt(row, 2); got != 97 {
		t.Errorf("metricInt(2) = %d, want 97", got)
	}
	if got := metricInt(row, 3); got != 0 {
		t.Errorf("metricInt(3) = %d, want 0", got)
	}
	if got := metricInt(row, 10); got != 0 {
		t.Errorf("metricInt out of range = %d, want 0", got)
	}
	if got := metricFloat(row, 10); got != 0 {
		t.Errorf("metricFloat out of range = %v, want 0", got)
	}
}
