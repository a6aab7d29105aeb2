// Package instrumented decorates any Store with the query timing span the
// core requires on every call.
package instrumented

import (
	"context"
	"strings"

	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
	"inviter/internal/platform/observability"
)

type Store struct {
	inner ports.Store
	timer *observability.QueryTimer
}

func Wrap(inner ports.Store, timer *observability.QueryTimer) *Store {
	return &Store{inner: inner, timer: timer}
}

// partitionTag collapses a partition key to its entity prefix so the label
// cardinality stays bounded (GROUP, USER, EVENT, SERIES, INVITE, ...).
func partitionTag(pk string) string {
	if i := strings.IndexByte(pk, '#'); i > 0 {
		return pk[:i]
	}
	if pk == "" {
		return "none"
	}
	return pk
}

func (s *Store) Get(ctx context.Context, pk, sk string) (items.Item, bool, error) {
	defer s.timer.Track("get", partitionTag(pk))()
	return s.inner.Get(ctx, pk, sk)
}

func (s *Store) Put(ctx context.Context, item items.Item, condition ports.Condition) error {
	defer s.timer.Track("put", partitionTag(item.PK()))()
	return s.inner.Put(ctx, item, condition)
}

func (s *Store) Update(ctx context.Context, pk, sk string, update ports.Update, condition ports.Condition) error {
	defer s.timer.Track("update", partitionTag(pk))()
	return s.inner.Update(ctx, pk, sk, update, condition)
}

func (s *Store) Delete(ctx context.Context, pk, sk string, condition ports.Condition) error {
	defer s.timer.Track("delete", partitionTag(pk))()
	return s.inner.Delete(ctx, pk, sk, condition)
}

func (s *Store) Query(ctx context.Context, q ports.Query) (ports.Page, error) {
	defer s.timer.Track("query", partitionTag(q.PK))()
	return s.inner.Query(ctx, q)
}

func (s *Store) QueryIndex(ctx context.Context, q ports.IndexQuery) (ports.Page, error) {
	defer s.timer.Track("queryIndex", partitionTag(q.PK))()
	return s.inner.QueryIndex(ctx, q)
}

func (s *Store) BatchWrite(ctx context.Context, ops []ports.BatchOp) error {
	tag := "batch"
	if len(ops) > 0 {
		if ops[0].Put != nil {
			tag = partitionTag(ops[0].Put.PK())
		} else {
			tag = partitionTag(ops[0].DeletePK)
		}
	}
	defer s.timer.Track("batchWrite", tag)()
	return s.inner.BatchWrite(ctx, ops)
}

func (s *Store) Transact(ctx context.Context, ops []ports.TransactOp) error {
	tag := "transact"
	if len(ops) > 0 {
		switch {
		case ops[0].Put != nil:
			tag = partitionTag(ops[0].Put.Item.PK())
		case ops[0].Update != nil:
			tag = partitionTag(ops[0].Update.PK)
		case ops[0].Delete != nil:
			tag = partitionTag(ops[0].Delete.PK)
		}
	}
	defer s.timer.Track("transact", tag)()
	return s.inner.Transact(ctx, ops)
}

var _ ports.Store = (*Store)(nil)
