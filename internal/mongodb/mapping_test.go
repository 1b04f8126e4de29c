package mongodb

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func specFor(t *testing.T, table string) CollectionSpec {
	t.Helper()
	for _, spec := range Collections {
		if spec.Table == table {
			return spec
		}
	}
	t.Fatalf("no spec for table %s", table)
	return CollectionSpec{}
}

func TestExtractRowConversions(t *testing.T) {
	spec := specFor(t, "mongo_subscriptions")

	oid := primitive.NewObjectID()
	userOID := primitive.NewObjectID()
	created := primitive.NewDateTimeFromTime(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	doc := bson.M{
		"_id":                oid,
		"subscriptionId":     "sub_123",
		"userId":             userOID,
		"type":               "premium",
		"amount":             int32(4900),
		"currency":           "usd",
		"interval":           "month",
		"startDate":          int64(1740000000),
		"currentPeriodStart": float64(1740000000),
		"cancelAtPeriodEnd":  false,
		"createdAt":          created,
	}

	row := spec.ExtractRow(doc)
	cols := spec.Columns()
	byCol := make(map[string]any, len(cols))
	for i, col := range cols {
		byCol[col] = row[i]
	}

	if byCol["id"] != oid.Hex() {
		t.Errorf("id = %v, want hex %s", byCol["id"], oid.Hex())
	}
	if byCol["user_id"] != userOID.Hex() {
		t.Errorf("user_id = %v, want hex", byCol["user_id"])
	}
	wantStart := time.Unix(1740000000, 0).UTC()
	if got, ok := byCol["start_date"].(time.Time); !ok || !got.Equal(wantStart) {
		t.Errorf("start_date = %v, want %v", byCol["start_date"], wantStart)
	}
	if got, ok := byCol["current_period_start"].(time.Time); !ok || !got.Equal(wantStart) {
		t.Errorf("current_period_start = %v, want %v", byCol["current_period_start"], wantStart)
	}
	if got, ok := byCol["created_at"].(time.Time); !ok || !got.Equal(created.Time().UTC()) {
		t.Errorf("created_at = %v", byCol["created_at"])
	}
	// Missing fields come through as nil.
	if byCol["canceled_at"] != nil {
		t.Errorf("canceled_at = %v, want nil", byCol["canceled_at"])
	}
	if byCol["stripe_status"] != nil {
		t.Errorf("stripe_status = %v, want nil", byCol["stripe_status"])
	}
}

func TestExtractRowObjectIDAsString(t *testing.T) {
	spec := specFor(t, "mongo_users")

	doc := bson.M{
		"_id":       primitive.NewObjectID(),
		"companyId": "legacy-string-ref",
	}
	row := spec.ExtractRow(doc)
	byCol := make(map[string]any)
	for i, col := range spec.Columns() {
		byCol[col] = row[i]
	}

	if byCol["company_id"] != "legacy-string-ref" {
		t.Errorf("company_id = %v, want string passthrough", byCol["company_id"])
	}
}

func TestExtractRowOrderDomainFromLink(t *testing.T) {
	spec := specFor(t, "mongo_orders")

	doc := bson.M{
		"_id":  primitive.NewObjectID(),
		"link": "example.com",
	}
	row := spec.ExtractRow(doc)
	byCol := make(map[string]any)
	for i, col := range spec.Columns() {
		byCol[col] = row[i]
	}

	if byCol["domain"] != "example.com" {
		t.Errorf("domain = %v, want link field value", byCol["domain"])
	}
}

func TestCollectionSpecsAreConsistent(t *testing.T) {
	seen := make(map[string]bool)
	for _, spec := range Collections {
		if seen[spec.Table] {
			t.Errorf("duplicate table %s", spec.Table)
		}
		seen[spec.Table] = true

		if len(spec.Fields) == 0 {
			t.Errorf("%s has no fields", spec.Collection)
		}
		if spec.Fields[0].Column != "id" {
			t.Errorf("%s first column = %s, want id", spec.Collection, spec.Fields[0].Column)
		}
	}
}
