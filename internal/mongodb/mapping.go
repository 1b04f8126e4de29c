package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FieldSpec maps one document field to a warehouse column.
type FieldSpec struct {
	// Source is the document field name.
	Source string
	// Column is the warehouse column name.
	Column string
	// ObjectID converts a primitive.ObjectID value to its hex string.
	ObjectID bool
	// UnixTime converts a numeric value of Unix seconds to time.Time.
	UnixTime bool
}

// CollectionSpec maps one source collection to a warehouse table.
type CollectionSpec struct {
	Collection string
	Table      string
	Fields     []FieldSpec
}

// Columns returns the warehouse column names in field order.
func (s CollectionSpec) Columns() []string {
	cols := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Column
	}
	return cols
}

// ExtractRow converts one document into positional column values.
func (s CollectionSpec) ExtractRow(doc bson.M) []any {
	row := make([]any, len(s.Fields))
	for i, f := range s.Fields {
		row[i] = extractValue(doc[f.Source], f)
	}
	return row
}

func extractValue(value any, f FieldSpec) any {
	if value == nil {
		return nil
	}

	if f.ObjectID {
		if oid, ok := value.(primitive.ObjectID); ok {
			return oid.Hex()
		}
		// Some references are stored as plain strings.
		if s, ok := value.(string); ok {
			return s
		}
		return nil
	}

	if f.UnixTime {
		switch v := value.(type) {
		case int32:
			return time.Unix(int64(v), 0).UTC()
		case int64:
			return time.Unix(v, 0).UTC()
		case float64:
			return time.Unix(int64(v), 0).UTC()
		default:
			return nil
		}
	}

	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time().UTC()
	case primitive.ObjectID:
		return v.Hex()
	default:
		return value
	}
}

// Collections is the full set of synced collections. Order matters only
// for log readability.
var Collections = []CollectionSpec{
	{
		Collection: "users",
		Table:      "mongo_users",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "email", Column: "email"},
			{Source: "role", Column: "role"},
			{Source: "status", Column: "status"},
			{Source: "companyId", Column: "company_id", ObjectID: true},
			{Source: "customerId", Column: "customer_id"},
			{Source: "isPublisher", Column: "is_publisher"},
			{Source: "balance", Column: "balance"},
			{Source: "createdAt", Column: "created_at"},
			{Source: "updatedAt", Column: "updated_at"},
		},
	},
	{
		Collection: "subscriptions",
		Table:      "mongo_subscriptions",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "subscriptionId", Column: "subscription_id"},
			{Source: "userId", Column: "user_id", ObjectID: true},
			{Source: "companyId", Column: "company_id", ObjectID: true},
			{Source: "type", Column: "type"},
			{Source: "amount", Column: "amount"},
			{Source: "currency", Column: "currency"},
			{Source: "interval", Column: "billing_interval"},
			{Source: "stripeStatus", Column: "stripe_status"},
			{Source: "priceId", Column: "price_id"},
			{Source: "startDate", Column: "start_date", UnixTime: true},
			{Source: "currentPeriodStart", Column: "current_period_start", UnixTime: true},
			{Source: "currentPeriodEnd", Column: "current_period_end", UnixTime: true},
			{Source: "cancelAtPeriodEnd", Column: "cancel_at_period_end"},
			{Source: "canceledAt", Column: "canceled_at", UnixTime: true},
			{Source: "endedAt", Column: "ended_at", UnixTime: true},
			{Source: "createdAt", Column: "created_at"},
			{Source: "updatedAt", Column: "updated_at"},
		},
	},
	{
		Collection: "stripePayments",
		Table:      "mongo_payments",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "paymentIntentId", Column: "payment_intent_id"},
			{Source: "userId", Column: "user_id", ObjectID: true},
			{Source: "companyId", Column: "company_id", ObjectID: true},
			{Source: "email", Column: "email"},
			{Source: "amount", Column: "amount"},
			{Source: "currency", Column: "currency"},
			{Source: "method", Column: "method"},
			{Source: "paymentStatus", Column: "payment_status"},
			{Source: "stripeStatus", Column: "stripe_status"},
			{Source: "last4", Column: "last4"},
			{Source: "description", Column: "description"},
			{Source: "receiptUrl", Column: "receipt_url"},
			{Source: "createdAt", Column: "created_at"},
			{Source: "updatedAt", Column: "updated_at"},
		},
	},
	{
		Collection: "companies",
		Table:      "mongo_companies",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "name", Column: "name"},
			{Source: "ownerId", Column: "owner_id", ObjectID: true},
			{Source: "subscriptionType", Column: "subscription_type"},
			{Source: "createdAt", Column: "created_at"},
			{Source: "updatedAt", Column: "updated_at"},
		},
	},
	{
		Collection: "orders",
		Table:      "mongo_orders",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "orderId", Column: "order_id"},
			{Source: "userId", Column: "user_id", ObjectID: true},
			{Source: "companyId", Column: "company_id", ObjectID: true},
			// The application stores the domain under "link".
			{Source: "link", Column: "domain"},
			{Source: "price", Column: "price"},
			{Source: "status", Column: "status"},
			{Source: "paymentStatus", Column: "payment_status"},
			{Source: "buyerEmail", Column: "buyer_email"},
			{Source: "sellerEmail", Column: "seller_email"},
			{Source: "stripePaymentId", Column: "stripe_payment_id", ObjectID: true},
			{Source: "docUrl", Column: "doc_url"},
			{Source: "createdAt", Column: "created_at"},
			{Source: "updatedAt", Column: "updated_at"},
		},
	},
	{
		Collection: "userUnlocks",
		Table:      "mongo_user_unlocks",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "userId", Column: "user_id", ObjectID: true},
			{Source: "companyId", Column: "company_id", ObjectID: true},
			{Source: "domainId", Column: "domain_id", ObjectID: true},
			{Source: "domain", Column: "domain"},
			{Source: "createdAt", Column: "created_at"},
		},
	},
	{
		Collection: "internalPayments",
		Table:      "mongo_internal_payments",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "userId", Column: "user_id", ObjectID: true},
			{Source: "companyId", Column: "company_id", ObjectID: true},
			{Source: "amount", Column: "amount"},
			{Source: "actionType", Column: "action_type"},
			{Source: "status", Column: "status"},
			{Source: "createdAt", Column: "created_at"},
			{Source: "updatedAt", Column: "updated_at"},
		},
	},
	{
		Collection: "projects",
		Table:      "mongo_projects",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "userId", Column: "user_id", ObjectID: true},
			{Source: "companyId", Column: "company_id", ObjectID: true},
			{Source: "name", Column: "name"},
			{Source: "domain", Column: "domain"},
			{Source: "createdAt", Column: "created_at"},
			{Source: "updatedAt", Column: "updated_at"},
		},
	},
	{
		Collection: "projectProspects",
		Table:      "mongo_project_prospects",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "projectId", Column: "project_id", ObjectID: true},
			{Source: "userId", Column: "user_id", ObjectID: true},
			{Source: "companyId", Column: "company_id", ObjectID: true},
			{Source: "domain", Column: "domain"},
			{Source: "status", Column: "status"},
			{Source: "liveLink", Column: "live_link"},
			{Source: "orderPrice", Column: "order_price"},
			{Source: "placedVia", Column: "placed_via"},
			{Source: "createdAt", Column: "created_at"},
			{Source: "updatedAt", Column: "updated_at"},
		},
	},
	{
		Collection: "projectCompletedOrders",
		Table:      "mongo_project_completed_orders",
		Fields: []FieldSpec{
			{Source: "_id", Column: "id", ObjectID: true},
			{Source: "projectId", Column: "project_id", ObjectID: true},
			{Source: "userId", Column: "user_id", ObjectID: true},
			{Source: "domain", Column: "domain"},
			{Source: "liveLink", Column: "live_link"},
			{Source: "placedVia", Column: "placed_via"},
			{Source: "createdAt", Column: "created_at"},
			{Source: "updatedAt", Column: "updated_at"},
		},
	},
}
