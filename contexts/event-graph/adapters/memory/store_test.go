package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/ports"
)

func testItem(pk, sk string, extra map[string]any) items.Item {
	item := items.Item{items.AttrPK: pk, items.AttrSK: sk}
	for name, value := range extra {
		item[name] = value
	}
	return item
}

func TestConditionalPuts(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	item := testItem("GROUP#a", "METADATA", map[string]any{"groupName": "hikers"})

	require.NoError(t, store.Put(ctx, item, ports.IfNotExists()))
	require.ErrorIs(t, store.Put(ctx, item, ports.IfNotExists()), ports.ErrConditionFailed)
	require.NoError(t, store.Put(ctx, item, ports.IfExists()))
	require.ErrorIs(t, store.Put(ctx, testItem("GROUP#b", "METADATA", nil), ports.IfExists()), ports.ErrConditionFailed)

	got, found, err := store.Get(ctx, "GROUP#a", "METADATA")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "hikers", got.String("groupName"))
}

func TestVersionGuardedUpdate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	item := testItem("EVENT#a", "METADATA", map[string]any{items.AttrVersion: int64(3)})
	require.NoError(t, store.Put(ctx, item, ports.NoCondition()))

	err := store.Update(ctx, "EVENT#a", "METADATA",
		ports.Update{Set: map[string]any{"title": "updated", items.AttrVersion: int64(4)}},
		ports.IfVersion(2))
	require.ErrorIs(t, err, ports.ErrConditionFailed)

	require.NoError(t, store.Update(ctx, "EVENT#a", "METADATA",
		ports.Update{Set: map[string]any{"title": "updated", items.AttrVersion: int64(4)}},
		ports.IfVersion(3)))

	got, _, err := store.Get(ctx, "EVENT#a", "METADATA")
	require.NoError(t, err)
	require.Equal(t, int64(4), got.Int64(items.AttrVersion))
	require.Equal(t, "updated", got.String("title"))
}

func TestArithmeticGuards(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx,
		testItem("EVENT#a", "CAR#d", map[string]any{"availableSeats": int64(2)}), ports.NoCondition()))

	// taking 3 seats from 2 fails the at-least guard
	err := store.Update(ctx, "EVENT#a", "CAR#d",
		ports.Update{Add: map[string]int64{"availableSeats": -3}},
		ports.IfAtLeast("availableSeats", 3))
	require.ErrorIs(t, err, ports.ErrConditionFailed)

	require.NoError(t, store.Update(ctx, "EVENT#a", "CAR#d",
		ports.Update{Add: map[string]int64{"availableSeats": -2}},
		ports.IfAtLeast("availableSeats", 2)))

	got, _, err := store.Get(ctx, "EVENT#a", "CAR#d")
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Int64("availableSeats"))

	// less-than guard: claimedSpots must stay under capacity
	require.NoError(t, store.Put(ctx,
		testItem("EVENT#a", "OFFER#o", map[string]any{"claimedSpots": int64(1)}), ports.NoCondition()))
	require.NoError(t, store.Update(ctx, "EVENT#a", "OFFER#o",
		ports.Update{Add: map[string]int64{"claimedSpots": 1}},
		ports.IfLessThan("claimedSpots", 2)))
	err = store.Update(ctx, "EVENT#a", "OFFER#o",
		ports.Update{Add: map[string]int64{"claimedSpots": 1}},
		ports.IfLessThan("claimedSpots", 2))
	require.ErrorIs(t, err, ports.ErrConditionFailed)
}

func TestTransactAllOrNothingWithReasons(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx,
		testItem("EVENT#a", "CAR#d", map[string]any{"availableSeats": int64(1)}), ports.NoCondition()))

	rider := testItem("EVENT#a", "CAR#d#RIDER#r", nil)
	err := store.Transact(ctx, []ports.TransactOp{
		{Put: &ports.PutOp{Item: rider, Condition: ports.IfNotExists()}},
		{Update: &ports.UpdateOp{
			PK:        "EVENT#a",
			SK:        "CAR#d",
			Update:    ports.Update{Add: map[string]int64{"availableSeats": -2}},
			Condition: ports.IfAtLeast("availableSeats", 2),
		}},
	})
	canceled, ok := ports.AsTransactionCanceled(err)
	require.True(t, ok)
	require.Equal(t, []int{1}, canceled.FailedIndexes())

	// nothing applied: rider row absent, seats untouched
	_, found, err := store.Get(ctx, "EVENT#a", "CAR#d#RIDER#r")
	require.NoError(t, err)
	require.False(t, found)
	car, _, err := store.Get(ctx, "EVENT#a", "CAR#d")
	require.NoError(t, err)
	require.Equal(t, int64(1), car.Int64("availableSeats"))

	// the same pair succeeds when the guard holds
	require.NoError(t, store.Transact(ctx, []ports.TransactOp{
		{Put: &ports.PutOp{Item: rider, Condition: ports.IfNotExists()}},
		{Update: &ports.UpdateOp{
			PK:        "EVENT#a",
			SK:        "CAR#d",
			Update:    ports.Update{Add: map[string]int64{"availableSeats": -1}},
			Condition: ports.IfAtLeast("availableSeats", 1),
		}},
	}))
	car, _, err = store.Get(ctx, "EVENT#a", "CAR#d")
	require.NoError(t, err)
	require.Equal(t, int64(0), car.Int64("availableSeats"))
}

func TestTransactSizeLimit(t *testing.T) {
	store := NewStore()
	ops := make([]ports.TransactOp, ports.MaxTransactSize+1)
	for i := range ops {
		ops[i] = ports.TransactOp{Put: &ports.PutOp{Item: testItem("GROUP#a", "USER#u", nil)}}
	}
	require.Error(t, store.Transact(context.Background(), ops))
}

func TestQueryPrefixAndPagination(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	for _, sk := range []string{"METADATA", "HANGOUT#b", "HANGOUT#a", "HANGOUT#c", "USER#u"} {
		require.NoError(t, store.Put(ctx, testItem("GROUP#g", sk, nil), ports.NoCondition()))
	}

	page, err := store.Query(ctx, ports.Query{PK: "GROUP#g", SortPrefix: "HANGOUT#", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, "HANGOUT#a", page.Items[0].SK())
	require.Equal(t, "HANGOUT#b", page.Items[1].SK())
	require.NotEmpty(t, page.Cursor)

	rest, err := store.Query(ctx, ports.Query{PK: "GROUP#g", SortPrefix: "HANGOUT#", Limit: 2, Cursor: page.Cursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.Equal(t, "HANGOUT#c", rest.Items[0].SK())
	require.Empty(t, rest.Cursor)
}

func TestEntityTimeIndexOrdersAndFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	put := func(sk string, start int64) {
		item := testItem("GROUP#g", sk, map[string]any{
			items.AttrGSI1PK:         "GROUP#g",
			items.AttrStartTimestamp: start,
		})
		require.NoError(t, store.Put(ctx, item, ports.NoCondition()))
	}
	put("HANGOUT#later", 300)
	put("HANGOUT#early", 100)
	put("HANGOUT#mid", 200)

	after := int64(100)
	page, err := store.QueryIndex(ctx, ports.IndexQuery{
		Index:          ports.EntityTimeIndex,
		PK:             "GROUP#g",
		AfterTimestamp: &after,
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.Equal(t, "HANGOUT#mid", page.Items[0].SK())
	require.Equal(t, "HANGOUT#later", page.Items[1].SK())
}

func TestUserGroupIndexPrefixFilter(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	membership := testItem("GROUP#g1", "USER#u", map[string]any{
		items.AttrGSI1PK: "USER#u",
		items.AttrGSI1SK: "GROUP#g1",
	})
	device := testItem("DEVICE#t", "METADATA", map[string]any{
		items.AttrGSI1PK: "USER#u",
		items.AttrGSI1SK: "DEVICE#t",
	})
	require.NoError(t, store.Put(ctx, membership, ports.NoCondition()))
	require.NoError(t, store.Put(ctx, device, ports.NoCondition()))

	page, err := store.QueryIndex(ctx, ports.IndexQuery{
		Index:      ports.UserGroupIndex,
		PK:         "USER#u",
		SortPrefix: "GROUP#",
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, "GROUP#g1", page.Items[0].PK())
}

func TestOpCounters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testItem("GROUP#g", "METADATA", nil), ports.NoCondition()))
	_, _, err := store.Get(ctx, "GROUP#g", "METADATA")
	require.NoError(t, err)
	_, _, err = store.Get(ctx, "GROUP#g", "METADATA")
	require.NoError(t, err)

	require.Equal(t, 1, store.OpCount("put"))
	require.Equal(t, 2, store.OpCount("get"))
	store.ResetOpCounts()
	require.Equal(t, 0, store.OpCount("get"))
}

func TestBatchWriteMixedOps(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, testItem("GROUP#g", "USER#old", nil), ports.NoCondition()))

	put := testItem("GROUP#g", "USER#new", nil)
	require.NoError(t, store.BatchWrite(ctx, []ports.BatchOp{
		{Put: put},
		{DeletePK: "GROUP#g", DeleteSK: "USER#old"},
	}))

	_, found, err := store.Get(ctx, "GROUP#g", "USER#old")
	require.NoError(t, err)
	require.False(t, found)
	_, found, err = store.Get(ctx, "GROUP#g", "USER#new")
	require.NoError(t, err)
	require.True(t, found)
}
