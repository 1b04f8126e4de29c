package bq

import (
	"testing"
	"time"
)

func TestConflictColumns(t *testing.T) {
	tests := []struct {
		target string
		want   int
	}{
		{"bq_gsc_site_impressions", 4},
		{"bq_gsc_url_impressions", 3},
		{"bq_clarity_snapshots", 0},
	}

	for _, tt := range tests {
		if got := conflictColumns(tt.target); len(got) != tt.want {
			t.Errorf("conflictColumns(%s) = %v, want %d columns", tt.target, got, tt.want)
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	ts := time.Date(2025, 6, 1, 14, 0, 0, 0, loc)

	got := normalizeValue(ts)
	converted, ok := got.(time.Time)
	if !ok {
		t.Fatalf("normalizeValue(time) = %T, want time.Time", got)
	}
	if converted.Location() != time.UTC {
		t.Errorf("normalizeValue did not convert to UTC: %v", converted)
	}
	if !converted.Equal(ts) {
		t.Errorf("normalizeValue changed the instant: %v vs %v", converted, ts)
	}

	if got := normalizeValue(nil); got != nil {
		t.Errorf("normalizeValue(nil) = %v, want nil", got)
	}
	if got := normalizeValue(int64(7)); got != int64(7) {
		t.Errorf("normalizeValue(int64) = %v, want 7", got)
	}
}

func TestCivilDate(t *testing.T) {
	ts := time.Date(2025, 6, 1, 23, 30, 0, 0, time.FixedZone("X", -5*60*60))
	if got := civilDate(ts); got != "2025-06-02" {
		t.Errorf("civilDate = %s, want 2025-06-02", got)
	}
}
