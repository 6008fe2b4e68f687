package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Table names, relative to the configured table prefix.
const (
	TableOrders        = "affiliate_orders"
	TableConfigs       = "affiliate_configs"
	TableSummaries     = "affiliate_summaries"
	TablePayments      = "affiliate_payments"
	TableImports       = "csv_imports"
	TableLinks         = "affiliate_links"
	TableLeads         = "leads"
	TableConversations = "chat_conversations"
	TableMessages      = "chat_messages"
)

// Secondary index names.
const (
	IndexOrdersByAffiliateDate    = "affiliate_id-order_date-index"
	IndexOrdersByAffiliateCreated = "affiliate_id-created_at-index"
	IndexOrdersByCustomerDate     = "customer_code-order_date-index"
	IndexConfigsByAffiliate       = "affiliate_id-index"
	IndexConfigsByCustomer        = "customer_code-index"
	IndexPaymentsByAffiliate      = "affiliate_id-created_at-index"
	IndexImportsByImporter        = "imported_by-created_at-index"
	IndexLinksByAffiliate         = "affiliate_id-created_at-index"
	IndexLeadsByStatus            = "status-created_at-index"
	IndexLeadsByAffiliateStatus   = "affiliate_id-status-index"
	IndexLeadsByAffiliate         = "affiliate_id-created_at-index"
	IndexConversationsByUser      = "user_id-created_at-index"
	IndexConversationsByStatus    = "status-created_at-index"
	IndexMessagesByConversation   = "conversation_id-created_at-index"
)

// IndexDef describes a secondary index by its partition and sort attributes.
type IndexDef struct {
	Name     string
	HashKey  string
	RangeKey string
}

// Indexes lists the secondary indexes each table is provisioned with.
var Indexes = map[string][]IndexDef{
	TableOrders: {
		{Name: IndexOrdersByAffiliateDate, HashKey: "affiliate_id", RangeKey: "order_date"},
		{Name: IndexOrdersByAffiliateCreated, HashKey: "affiliate_id", RangeKey: "created_at"},
		{Name: IndexOrdersByCustomerDate, HashKey: "customer_code", RangeKey: "order_date"},
	},
	TableConfigs: {
		{Name: IndexConfigsByAffiliate, HashKey: "affiliate_id"},
		{Name: IndexConfigsByCustomer, HashKey: "customer_code"},
	},
	TablePayments: {
		{Name: IndexPaymentsByAffiliate, HashKey: "affiliate_id", RangeKey: "created_at"},
	},
	TableImports: {
		{Name: IndexImportsByImporter, HashKey: "imported_by", RangeKey: "created_at"},
	},
	TableLinks: {
		{Name: IndexLinksByAffiliate, HashKey: "affiliate_id", RangeKey: "created_at"},
	},
	TableLeads: {
		{Name: IndexLeadsByStatus, HashKey: "status", RangeKey: "created_at"},
		{Name: IndexLeadsByAffiliateStatus, HashKey: "affiliate_id", RangeKey: "status"},
		{Name: IndexLeadsByAffiliate, HashKey: "affiliate_id", RangeKey: "created_at"},
	},
	TableConversations: {
		{Name: IndexConversationsByUser, HashKey: "user_id", RangeKey: "created_at"},
		{Name: IndexConversationsByStatus, HashKey: "status", RangeKey: "created_at"},
	},
	TableMessages: {
		{Name: IndexMessagesByConversation, HashKey: "conversation_id", RangeKey: "created_at"},
	},
}

// PrimaryKeys lists the key attributes of every table.
var PrimaryKeys = map[string][]string{
	TableOrders:        {"order_id"},
	TableConfigs:       {"config_id"},
	TableSummaries:     {"affiliate_id", "period"},
	TablePayments:      {"payment_id"},
	TableImports:       {"import_id"},
	TableLinks:         {"link_id"},
	TableLeads:         {"lead_id"},
	TableConversations: {"conversation_id"},
	TableMessages:      {"message_id"},
}

var (
	// ErrIndexNotFound is returned by a backend when a query names an index that does not exist.
	ErrIndexNotFound = errors.New("index not found")
	// ErrUnavailable wraps backend failures that persisted through all retries.
	ErrUnavailable = errors.New("store unavailable")
)

// Key identifies one record by its primary key attributes.
type Key map[string]interface{}

func (k Key) String() string {
	fields := make([]string, 0, len(k))
	for f := range k {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f, k[f]))
	}
	return strings.Join(parts, "|")
}

// Operator is a comparison used in query and update conditions.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
)

// Condition restricts a query or a conditional update to records whose field matches.
type Condition struct {
	Field string
	Op    Operator
	Value interface{}
}

func Eq(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

func Gte(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpGte, Value: value}
}

func Lt(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpLt, Value: value}
}

func Lte(field string, value interface{}) Condition {
	return Condition{Field: field, Op: OpLte, Value: value}
}

func In(field string, values ...interface{}) Condition {
	return Condition{Field: field, Op: OpIn, Value: values}
}

// IndexQuery selects records through a named secondary index.
type IndexQuery struct {
	Index      string
	Conditions []Condition
	SortKey    string
	Descending bool
	Limit      int64
}

// Update is a partial attribute update applied only when Conditions hold.
type Update struct {
	Set        map[string]interface{}
	Inc        map[string]int64
	Conditions []Condition
}

// Store is the keyed record store behind every service. Out parameters are
// pointers to a record struct (Get) or to a slice of record structs (QueryByIndex, Scan).
type Store interface {
	// Put upserts record under key unconditionally.
	Put(ctx context.Context, table string, key Key, record interface{}) error
	// Get loads the record at key into out and reports whether it exists.
	Get(ctx context.Context, table string, key Key, out interface{}) (bool, error)
	// QueryByIndex falls back to a filtered scan, logged as a warning, when the index is missing.
	QueryByIndex(ctx context.Context, table string, q IndexQuery, out interface{}) error
	// Update applies a partial update and reports whether a record matched key and conditions.
	Update(ctx context.Context, table string, key Key, upd Update) (bool, error)
	// Scan reads up to limit records without an index; limit <= 0 reads everything.
	Scan(ctx context.Context, table string, limit int64, out interface{}) error
}
