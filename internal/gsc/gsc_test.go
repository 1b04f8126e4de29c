package gsc

import (
	"testing"
	"time"
)

func TestLastDays(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		days      int
		wantStart string
		wantEnd   string
	}{
		{30, "2025-05-16", "2025-06-14"},
		{7, "2025-06-08", "2025-06-14"},
		{1, "2025-06-14", "2025-06-14"},
	}

	for _, tt := range tests {
		w := LastDays(now, tt.days)
		if w.Start != tt.wantStart || w.End != tt.wantEnd {
			t.Errorf("LastDays(%d) = %s..%s, want %s..%s",
				tt.days, w.Start, w.End, tt.wantStart, tt.wantEnd)
		}
	}
}
