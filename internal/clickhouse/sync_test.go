package clickhouse

import "testing"

func TestPostgresType(t *testing.T) {
	tests := []struct {
		chType string
		want   string
	}{
		{"String", "TEXT"},
		{"UInt64", "NUMERIC(20)"},
		{"Int32", "INTEGER"},
		{"Float64", "DOUBLE PRECISION"},
		{"DateTime", "TIMESTAMPTZ"},
		{"DateTime64(3)", "TIMESTAMPTZ"},
		{"Date", "DATE"},
		{"UUID", "UUID"},
		{"Bool", "BOOLEAN"},
		{"Nullable(String)", "TEXT"},
		{"Nullable(DateTime64(3, 'UTC'))", "TIMESTAMPTZ"},
		{"LowCardinality(String)", "TEXT"},
		{"Nullable(LowCardinality(String))", "TEXT"},
		{"Decimal(18, 2)", "NUMERIC"},
		{"Enum8('a' = 1, 'b' = 2)", "TEXT"},
		{"Array(String)", "TEXT"},
	}

	for _, tt := range tests {
		t.Run(tt.chType, func(t *testing.T) {
			if got := PostgresType(tt.chType); got != tt.want {
				t.Errorf("PostgresType(%q) = %q, want %q", tt.chType, got, tt.want)
			}
		})
	}
}

func TestSpecFor(t *testing.T) {
	spec, ok := SpecFor("user_activity_logs")
	if !ok {
		t.Fatal("user_activity_logs not configured")
	}
	if spec.TimestampColumn != "timestamp" {
		t.Errorf("TimestampColumn = %q", spec.TimestampColumn)
	}
	if spec.Target() != "ch_user_activity_logs" {
		t.Errorf("Target() = %q", spec.Target())
	}

	if _, ok := SpecFor("domain_history"); ok {
		t.Error("domain_history should not be mirrored")
	}
}
