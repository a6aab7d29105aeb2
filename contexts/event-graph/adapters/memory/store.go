// Package memory implements the wide-key Store port on in-process maps.
// It honors the full capability surface, including conditional arithmetic
// updates and all-or-nothing transactions, so repository and service tests
// exercise the same code paths as the postgres adapter.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
)

type Store struct {
	mu         sync.RWMutex
	partitions map[string]map[string]items.Item

	// operation counters keyed by op name, for tests that assert query
	// budgets (e.g. the ETag short-circuit reads exactly one item).
	opCounts map[string]int
}

func NewStore() *Store {
	return &Store{
		partitions: make(map[string]map[string]items.Item),
		opCounts:   make(map[string]int),
	}
}

// OpCount returns how many times the named operation ran ("get", "query",
// "queryIndex", "put", "update", "delete", "batchWrite", "transact").
func (s *Store) OpCount(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opCounts[op]
}

// ResetOpCounts clears the counters between test phases.
func (s *Store) ResetOpCounts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opCounts = make(map[string]int)
}

func (s *Store) count(op string) {
	s.opCounts[op]++
}

func (s *Store) Get(_ context.Context, pk, sk string) (items.Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("get")
	partition, ok := s.partitions[pk]
	if !ok {
		return nil, false, nil
	}
	item, ok := partition[sk]
	if !ok {
		return nil, false, nil
	}
	return item.Clone(), true, nil
}

func (s *Store) Put(_ context.Context, item items.Item, condition ports.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("put")
	if err := s.checkCondition(item.PK(), item.SK(), condition); err != nil {
		return err
	}
	s.apply(item.Clone())
	return nil
}

func (s *Store) Update(_ context.Context, pk, sk string, update ports.Update, condition ports.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("update")
	if err := s.checkCondition(pk, sk, condition); err != nil {
		return err
	}
	s.applyUpdate(pk, sk, update)
	return nil
}

func (s *Store) Delete(_ context.Context, pk, sk string, condition ports.Condition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("delete")
	if err := s.checkCondition(pk, sk, condition); err != nil {
		return err
	}
	s.remove(pk, sk)
	return nil
}

func (s *Store) Query(_ context.Context, q ports.Query) (ports.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("query")
	partition := s.partitions[q.PK]
	sortKeys := make([]string, 0, len(partition))
	for sk := range partition {
		if q.SortPrefix == "" || strings.HasPrefix(sk, q.SortPrefix) {
			sortKeys = append(sortKeys, sk)
		}
	}
	sort.Strings(sortKeys)
	if q.Reverse {
		reverse(sortKeys)
	}
	start := 0
	if q.Cursor != "" {
		for i, sk := range sortKeys {
			if sk == q.Cursor {
				start = i + 1
				break
			}
		}
	}
	page := ports.Page{}
	for i := start; i < len(sortKeys); i++ {
		page.Items = append(page.Items, partition[sortKeys[i]].Clone())
		if q.Limit > 0 && len(page.Items) == q.Limit {
			if i < len(sortKeys)-1 {
				page.Cursor = sortKeys[i]
			}
			break
		}
	}
	return page, nil
}

type indexEntry struct {
	sortNum int64
	sortStr string
	item    items.Item
}

func (s *Store) QueryIndex(_ context.Context, q ports.IndexQuery) (ports.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("queryIndex")

	var entries []indexEntry
	for _, partition := range s.partitions {
		for _, item := range partition {
			if item.String(items.AttrGSI1PK) != q.PK {
				continue
			}
			switch q.Index {
			case ports.EntityTimeIndex:
				if !item.Has(items.AttrStartTimestamp) {
					continue
				}
				ts := item.Int64(items.AttrStartTimestamp)
				if q.AfterTimestamp != nil && ts <= *q.AfterTimestamp {
					continue
				}
				entries = append(entries, indexEntry{sortNum: ts, sortStr: item.SK(), item: item})
			case ports.UserGroupIndex:
				gsi1sk := item.String(items.AttrGSI1SK)
				if gsi1sk == "" {
					continue
				}
				if q.SortPrefix != "" && !strings.HasPrefix(gsi1sk, q.SortPrefix) {
					continue
				}
				entries = append(entries, indexEntry{sortStr: gsi1sk, item: item})
			default:
				return ports.Page{}, fmt.Errorf("unknown index %q", q.Index)
			}
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].sortNum != entries[j].sortNum {
			return entries[i].sortNum < entries[j].sortNum
		}
		return entries[i].sortStr < entries[j].sortStr
	})
	if q.Reverse {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}

	start := 0
	if q.Cursor != "" {
		for i, entry := range entries {
			if cursorOf(entry) == q.Cursor {
				start = i + 1
				break
			}
		}
	}
	page := ports.Page{}
	for i := start; i < len(entries); i++ {
		page.Items = append(page.Items, entries[i].item.Clone())
		if q.Limit > 0 && len(page.Items) == q.Limit {
			if i < len(entries)-1 {
				page.Cursor = cursorOf(entries[i])
			}
			break
		}
	}
	return page, nil
}

func cursorOf(e indexEntry) string {
	return fmt.Sprintf("%d|%s|%s", e.sortNum, e.item.PK(), e.item.SK())
}

func (s *Store) BatchWrite(_ context.Context, ops []ports.BatchOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("batchWrite")
	// Chunking exists for parity with the real store's 25-item limit; each
	// chunk applies unconditionally.
	for _, op := range ops {
		if op.Put != nil {
			s.apply(op.Put.Clone())
			continue
		}
		s.remove(op.DeletePK, op.DeleteSK)
	}
	return nil
}

func (s *Store) Transact(_ context.Context, ops []ports.TransactOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count("transact")
	if len(ops) > ports.MaxTransactSize {
		return fmt.Errorf("transact exceeds %d ops", ports.MaxTransactSize)
	}

	// Phase one validates every condition against the pre-state; phase two
	// applies. Observers holding the lock see all effects or none.
	reasons := make([]ports.CancelReason, len(ops))
	failed := false
	for i, op := range ops {
		reasons[i] = ports.CancelReason{Index: i, Code: ports.CancelNone}
		var err error
		switch {
		case op.Put != nil:
			err = s.checkCondition(op.Put.Item.PK(), op.Put.Item.SK(), op.Put.Condition)
		case op.Update != nil:
			err = s.checkCondition(op.Update.PK, op.Update.SK, op.Update.Condition)
		case op.Delete != nil:
			err = s.checkCondition(op.Delete.PK, op.Delete.SK, op.Delete.Condition)
		default:
			return fmt.Errorf("transact op %d is empty", i)
		}
		if err != nil {
			reasons[i].Code = ports.CancelConditionFailed
			failed = true
		}
	}
	if failed {
		return &ports.TransactionCanceledError{Reasons: reasons}
	}

	for _, op := range ops {
		switch {
		case op.Put != nil:
			s.apply(op.Put.Item.Clone())
		case op.Update != nil:
			s.applyUpdate(op.Update.PK, op.Update.SK, op.Update.Update)
		case op.Delete != nil:
			s.remove(op.Delete.PK, op.Delete.SK)
		}
	}
	return nil
}

func (s *Store) checkCondition(pk, sk string, condition ports.Condition) error {
	partition := s.partitions[pk]
	item, exists := partition[sk]
	switch condition.Kind {
	case ports.ConditionNone:
		return nil
	case ports.ConditionNotExists:
		if exists {
			return ports.ErrConditionFailed
		}
	case ports.ConditionExists:
		if !exists {
			return ports.ErrConditionFailed
		}
	case ports.ConditionVersionEquals:
		if !exists || item.Int64(items.AttrVersion) != condition.Value {
			return ports.ErrConditionFailed
		}
	case ports.ConditionFieldAtLeast:
		if !exists || item.Int64(condition.Field) < condition.Value {
			return ports.ErrConditionFailed
		}
	case ports.ConditionFieldLessThan:
		if !exists || item.Int64(condition.Field) >= condition.Value {
			return ports.ErrConditionFailed
		}
	}
	return nil
}

func (s *Store) apply(item items.Item) {
	pk := item.PK()
	if s.partitions[pk] == nil {
		s.partitions[pk] = make(map[string]items.Item)
	}
	s.partitions[pk][item.SK()] = item
}

func (s *Store) applyUpdate(pk, sk string, update ports.Update) {
	partition := s.partitions[pk]
	if partition == nil {
		partition = make(map[string]items.Item)
		s.partitions[pk] = partition
	}
	item, ok := partition[sk]
	if !ok {
		item = items.Item{items.AttrPK: pk, items.AttrSK: sk}
	} else {
		item = item.Clone()
	}
	for name, value := range update.Set {
		item[name] = normalize(value)
	}
	for name, delta := range update.Add {
		item[name] = item.Int64(name) + delta
	}
	for _, name := range update.Remove {
		delete(item, name)
	}
	partition[sk] = item
}

func (s *Store) remove(pk, sk string) {
	partition := s.partitions[pk]
	if partition == nil {
		return
	}
	delete(partition, sk)
	if len(partition) == 0 {
		delete(s.partitions, pk)
	}
}

// normalize pushes values through the same JSON shapes the postgres adapter
// produces, keeping decoders single-pathed.
func normalize(value any) any {
	switch v := value.(type) {
	case items.Item:
		return map[string]any(v.Clone())
	default:
		return value
	}
}

func reverse(keys []string) {
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
}

// SystemClock satisfies the Clock port with wall time.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// UUIDGenerator satisfies the IDGenerator port with random UUIDv4 values.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string { return uuid.NewString() }

var _ ports.Store = (*Store)(nil)
var _ ports.Clock = SystemClock{}
var _ ports.IDGenerator = UUIDGenerator{}
