package warehouse

import "testing"

func TestUpsertSQL(t *testing.T) {
	tests := []struct {
		name     string
		table    string
		columns  []string
		conflict []string
		want     string
	}{
		{
			name:     "upsert with key and data columns",
			table:    "gsc_daily",
			columns:  []string{"date", "clicks", "impressions"},
			conflict: []string{"date"},
			want:     "INSERT INTO gsc_daily (date, clicks, impressions) VALUES ($1, $2, $3) ON CONFLICT (date) DO UPDATE SET clicks = EXCLUDED.clicks, impressions = EXCLUDED.impressions",
		},
		{
			name:     "composite conflict key",
			table:    "gsc_queries",
			columns:  []string{"date", "query", "clicks"},
			conflict: []string{"date", "query"},
			want:     "INSERT INTO gsc_queries (date, query, clicks) VALUES ($1, $2, $3) ON CONFLICT (date, query) DO UPDATE SET clicks = EXCLUDED.clicks",
		},
		{
			name:    "no conflict columns gives plain insert",
			table:   "events",
			columns: []string{"id", "payload"},
			want:    "INSERT INTO events (id, payload) VALUES ($1, $2)",
		},
		{
			name:     "all columns are keys",
			table:    "seen",
			columns:  []string{"date", "query"},
			conflict: []string{"date", "query"},
			want:     "INSERT INTO seen (date, query) VALUES ($1, $2) ON CONFLICT (date, query) DO NOTHING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpsertSQL(tt.table, tt.columns, tt.conflict)
			if got != tt.want {
				t.Errorf("UpsertSQL() = %q, want %q", got, tt.want)
			}
		})
	}
}
