// Package ports defines the capability interfaces the event-graph core
// consumes. Adapters implement them; repositories and services depend only
// on these types.
package ports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inviter/contexts/event-graph/domain/items"
)

// Index names of the two secondary indexes the table carries.
const (
	EntityTimeIndex = "EntityTimeIndex" // (gsi1pk string, startTimestamp number)
	UserGroupIndex  = "UserGroupIndex"  // (gsi1pk string, gsi1sk string)
)

// Write limits of the underlying store; the adapter auto-chunks batches and
// rejects oversized transactions.
const (
	MaxBatchSize    = 25
	MaxTransactSize = 25
)

// ConditionKind selects the guard evaluated before a write applies.
type ConditionKind int

const (
	ConditionNone ConditionKind = iota
	// ConditionNotExists requires no item at (pk, sk).
	ConditionNotExists
	// ConditionExists requires an item at (pk, sk); pointer updates use it
	// so a concurrent delete is never resurrected.
	ConditionExists
	// ConditionVersionEquals requires item.version == Value.
	ConditionVersionEquals
	// ConditionFieldAtLeast requires item.Field >= Value; seat claims use it.
	ConditionFieldAtLeast
	// ConditionFieldLessThan requires item.Field < Value; capacity-bounded
	// offer claims use it.
	ConditionFieldLessThan
)

type Condition struct {
	Kind  ConditionKind
	Field string
	Value int64
}

func NoCondition() Condition       { return Condition{Kind: ConditionNone} }
func IfNotExists() Condition       { return Condition{Kind: ConditionNotExists} }
func IfExists() Condition          { return Condition{Kind: ConditionExists} }
func IfVersion(v int64) Condition  { return Condition{Kind: ConditionVersionEquals, Value: v} }
func IfAtLeast(field string, v int64) Condition {
	return Condition{Kind: ConditionFieldAtLeast, Field: field, Value: v}
}
func IfLessThan(field string, v int64) Condition {
	return Condition{Kind: ConditionFieldLessThan, Field: field, Value: v}
}

// Update is a store-side update expression: Set assigns attributes, Add
// applies signed numeric deltas, Remove drops attributes. Add on a missing
// attribute treats it as zero.
type Update struct {
	Set    map[string]any
	Add    map[string]int64
	Remove []string
}

// Query selects an item collection by partition and optional sort prefix.
type Query struct {
	PK         string
	SortPrefix string
	Reverse    bool
	Limit      int
	Cursor     string
}

// IndexQuery runs against one of the secondary indexes. AfterTimestamp
// applies to EntityTimeIndex (startTimestamp > value); SortPrefix applies to
// UserGroupIndex.
type IndexQuery struct {
	Index          string
	PK             string
	AfterTimestamp *int64
	SortPrefix     string
	Reverse        bool
	Limit          int
	Cursor         string
}

// Page is one result page. Cursor is opaque; empty means exhausted.
type Page struct {
	Items  []items.Item
	Cursor string
}

// TransactOp is one all-or-nothing member of a transactional write. Exactly
// one of Put/Update/Delete is set.
type TransactOp struct {
	Put    *PutOp
	Update *UpdateOp
	Delete *DeleteOp
}

type PutOp struct {
	Item      items.Item
	Condition Condition
}

type UpdateOp struct {
	PK        string
	SK        string
	Update    Update
	Condition Condition
}

type DeleteOp struct {
	PK        string
	SK        string
	Condition Condition
}

// BatchOp is one member of a non-transactional batch write.
type BatchOp struct {
	Put      items.Item
	DeletePK string
	DeleteSK string
}

// Store is the wide-key capability surface of spec level: composite-key
// access, begins_with ranges, two secondary indexes, conditional writes with
// arithmetic expressions, and bounded transactional/batch writes.
type Store interface {
	Get(ctx context.Context, pk, sk string) (items.Item, bool, error)
	Put(ctx context.Context, item items.Item, condition Condition) error
	Update(ctx context.Context, pk, sk string, update Update, condition Condition) error
	Delete(ctx context.Context, pk, sk string, condition Condition) error
	Query(ctx context.Context, q Query) (Page, error)
	QueryIndex(ctx context.Context, q IndexQuery) (Page, error)
	BatchWrite(ctx context.Context, ops []BatchOp) error
	Transact(ctx context.Context, ops []TransactOp) error
}

// ErrConditionFailed signals a failed write guard. It is a domain signal,
// never retried.
var ErrConditionFailed = errors.New("condition failed")

// ErrUnavailable signals a transport fault that survived the adapter's
// retry budget.
var ErrUnavailable = errors.New("store unavailable")

// CancelReasonCode tags why a transact member was rejected.
type CancelReasonCode string

const (
	CancelNone            CancelReasonCode = "None"
	CancelConditionFailed CancelReasonCode = "ConditionalCheckFailed"
)

type CancelReason struct {
	Index int
	Code  CancelReasonCode
}

// TransactionCanceledError reports per-op cancellation reasons so callers
// can classify which guard lost (e.g. seat condition vs rider existence).
type TransactionCanceledError struct {
	Reasons []CancelReason
}

func (e *TransactionCanceledError) Error() string {
	return fmt.Sprintf("transaction canceled (%d reasons)", len(e.Reasons))
}

// FailedIndexes lists the op positions whose condition failed.
func (e *TransactionCanceledError) FailedIndexes() []int {
	var out []int
	for _, reason := range e.Reasons {
		if reason.Code == CancelConditionFailed {
			out = append(out, reason.Index)
		}
	}
	return out
}

// AsTransactionCanceled unwraps a TransactionCanceledError if present.
func AsTransactionCanceled(err error) (*TransactionCanceledError, bool) {
	var canceled *TransactionCanceledError
	ok := errors.As(err, &canceled)
	return canceled, ok
}

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// IDGenerator mints UUIDv4 identifiers.
type IDGenerator interface {
	NewID() string
}

// RateLimiter gates a keyed action; Allow returns false when the caller is
// over budget.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}
