// Package postgresadapter implements the wide-key Store port on a single
// postgres table. Conditional writes and transactional batches run inside
// row-locking transactions; unique-key conflicts surface as condition
// failures; transient faults are retried with exponential backoff behind a
// circuit breaker.
package postgresadapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sony/gobreaker"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"inviter/contexts/event-graph/domain/items"
	"inviter/contexts/event-graph/domain/keys"
	"inviter/contexts/event-graph/ports"
)

type Store struct {
	db      *gorm.DB
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker

	attemptTimeout time.Duration
	maxRetries     uint64
}

type Options struct {
	AttemptTimeout time.Duration
	MaxRetries     int
}

func NewStore(db *gorm.DB, logger *slog.Logger, opts Options) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 3
	}
	return &Store{
		db:     db,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "item-store",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
		attemptTimeout: opts.AttemptTimeout,
		maxRetries:     uint64(opts.MaxRetries),
	}
}

// Migrate creates the items table and both secondary indexes.
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&itemRow{}); err != nil {
		return err
	}
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_items_entity_time ON items (gsi1pk, start_ts) WHERE gsi1pk IS NOT NULL AND start_ts IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_items_user_group ON items (gsi1pk, gsi1sk) WHERE gsi1pk IS NOT NULL AND gsi1sk IS NOT NULL`,
	}
	for _, stmt := range statements {
		if err := s.db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

type itemRow struct {
	PK      string  `gorm:"column:pk;primaryKey"`
	SK      string  `gorm:"column:sk;primaryKey"`
	GSI1PK  *string `gorm:"column:gsi1pk;index"`
	GSI1SK  *string `gorm:"column:gsi1sk"`
	StartTS *int64  `gorm:"column:start_ts"`
	Attrs   []byte  `gorm:"column:attrs;type:jsonb"`
}

func (itemRow) TableName() string { return "items" }

func rowFromItem(item items.Item) (itemRow, error) {
	attrs, err := json.Marshal(item)
	if err != nil {
		return itemRow{}, err
	}
	row := itemRow{PK: item.PK(), SK: item.SK(), Attrs: attrs}
	if gsi1pk := item.String(items.AttrGSI1PK); gsi1pk != "" {
		row.GSI1PK = &gsi1pk
	}
	if gsi1sk := item.String(items.AttrGSI1SK); gsi1sk != "" {
		row.GSI1SK = &gsi1sk
	}
	if item.Has(items.AttrStartTimestamp) {
		ts := item.Int64(items.AttrStartTimestamp)
		row.StartTS = &ts
	}
	return row, nil
}

func (r itemRow) item() (items.Item, error) {
	var item items.Item
	if err := json.Unmarshal(r.Attrs, &item); err != nil {
		return nil, err
	}
	return item, nil
}

// execute runs op behind the breaker with per-attempt timeout and retry on
// transient faults. Condition failures and canceled transactions pass
// through untouched; they are domain signals, not transport errors.
func (s *Store) execute(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := s.breaker.Execute(func() (any, error) {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 50 * time.Millisecond
		bo.MaxElapsedTime = 0
		return nil, backoff.Retry(func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
			defer cancel()
			err := op(attemptCtx)
			if err == nil {
				return nil
			}
			if !retriable(err) {
				return backoff.Permanent(err)
			}
			s.logger.Warn("store operation retrying",
				"event", "store_retry",
				"module", "event-graph",
				"layer", "adapter",
				"operation", name,
				"error", err.Error(),
			)
			return err
		}, backoff.WithContext(backoff.WithMaxRetries(bo, s.maxRetries), ctx))
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ports.ErrUnavailable
	}
	if errors.Is(err, ports.ErrConditionFailed) {
		return err
	}
	if _, ok := ports.AsTransactionCanceled(err); ok {
		return err
	}
	if retriable(err) {
		return ports.ErrUnavailable
	}
	return err
}

func retriable(err error) bool {
	if errors.Is(err, ports.ErrConditionFailed) {
		return false
	}
	if _, ok := ports.AsTransactionCanceled(err); ok {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "53300", "57P03", "08006", "08003":
			return true
		}
		return false
	}
	// Driver-level connectivity faults arrive as plain errors.
	return strings.Contains(err.Error(), "connection")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *Store) Get(ctx context.Context, pk, sk string) (items.Item, bool, error) {
	var item items.Item
	found := false
	err := s.execute(ctx, "get", func(ctx context.Context) error {
		var row itemRow
		err := s.db.WithContext(ctx).
			Where("pk = ? AND sk = ?", pk, sk).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		decoded, err := row.item()
		if err != nil {
			return backoff.Permanent(err)
		}
		item = decoded
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return item, found, nil
}

func (s *Store) Put(ctx context.Context, item items.Item, condition ports.Condition) error {
	row, err := rowFromItem(item)
	if err != nil {
		return err
	}
	return s.execute(ctx, "put", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return putInTx(tx, row, condition)
		})
	})
}

func putInTx(tx *gorm.DB, row itemRow, condition ports.Condition) error {
	if condition.Kind == ports.ConditionNotExists {
		create := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if create.Error != nil {
			if isUniqueViolation(create.Error) {
				return ports.ErrConditionFailed
			}
			return create.Error
		}
		if create.RowsAffected == 0 {
			return ports.ErrConditionFailed
		}
		return nil
	}
	if condition.Kind != ports.ConditionNone {
		if _, err := lockAndCheck(tx, row.PK, row.SK, condition); err != nil {
			return err
		}
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pk"}, {Name: "sk"}},
		DoUpdates: clause.Assignments(map[string]any{
			"gsi1pk":   row.GSI1PK,
			"gsi1sk":   row.GSI1SK,
			"start_ts": row.StartTS,
			"attrs":    row.Attrs,
		}),
	}).Create(&row).Error
}

// lockAndCheck locks the row FOR UPDATE and evaluates the condition against
// the decoded attributes.
func lockAndCheck(tx *gorm.DB, pk, sk string, condition ports.Condition) (items.Item, error) {
	var row itemRow
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pk = ? AND sk = ?", pk, sk).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		switch condition.Kind {
		case ports.ConditionNotExists, ports.ConditionNone:
			return nil, nil
		default:
			return nil, ports.ErrConditionFailed
		}
	}
	if err != nil {
		return nil, err
	}
	item, err := row.item()
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	switch condition.Kind {
	case ports.ConditionNotExists:
		return nil, ports.ErrConditionFailed
	case ports.ConditionVersionEquals:
		if item.Int64(items.AttrVersion) != condition.Value {
			return nil, ports.ErrConditionFailed
		}
	case ports.ConditionFieldAtLeast:
		if item.Int64(condition.Field) < condition.Value {
			return nil, ports.ErrConditionFailed
		}
	case ports.ConditionFieldLessThan:
		if item.Int64(condition.Field) >= condition.Value {
			return nil, ports.ErrConditionFailed
		}
	}
	return item, nil
}

func (s *Store) Update(ctx context.Context, pk, sk string, update ports.Update, condition ports.Condition) error {
	return s.execute(ctx, "update", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return updateInTx(tx, pk, sk, update, condition)
		})
	})
}

func updateInTx(tx *gorm.DB, pk, sk string, update ports.Update, condition ports.Condition) error {
	item, err := lockAndCheck(tx, pk, sk, condition)
	if err != nil {
		return err
	}
	if item == nil {
		item = items.Item{items.AttrPK: pk, items.AttrSK: sk}
	}
	for name, value := range update.Set {
		item[name] = value
	}
	for name, delta := range update.Add {
		item[name] = item.Int64(name) + delta
	}
	for _, name := range update.Remove {
		delete(item, name)
	}
	row, err := rowFromItem(item)
	if err != nil {
		return backoff.Permanent(err)
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pk"}, {Name: "sk"}},
		DoUpdates: clause.Assignments(map[string]any{
			"gsi1pk":   row.GSI1PK,
			"gsi1sk":   row.GSI1SK,
			"start_ts": row.StartTS,
			"attrs":    row.Attrs,
		}),
	}).Create(&row).Error
}

func (s *Store) Delete(ctx context.Context, pk, sk string, condition ports.Condition) error {
	return s.execute(ctx, "delete", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if condition.Kind != ports.ConditionNone {
				if _, err := lockAndCheck(tx, pk, sk, condition); err != nil {
					return err
				}
			}
			return tx.Where("pk = ? AND sk = ?", pk, sk).Delete(&itemRow{}).Error
		})
	})
}

func (s *Store) Query(ctx context.Context, q ports.Query) (ports.Page, error) {
	var page ports.Page
	err := s.execute(ctx, "query", func(ctx context.Context) error {
		tx := s.db.WithContext(ctx).Model(&itemRow{}).Where("pk = ?", q.PK)
		if q.SortPrefix != "" {
			tx = tx.Where("sk LIKE ?", likePrefix(q.SortPrefix))
		}
		if q.Cursor != "" {
			if q.Reverse {
				tx = tx.Where("sk < ?", q.Cursor)
			} else {
				tx = tx.Where("sk > ?", q.Cursor)
			}
		}
		order := "sk ASC"
		if q.Reverse {
			order = "sk DESC"
		}
		tx = tx.Order(order)
		limit := q.Limit
		if limit > 0 {
			tx = tx.Limit(limit + 1)
		}
		var rows []itemRow
		if err := tx.Find(&rows).Error; err != nil {
			return err
		}
		page = ports.Page{}
		for i, row := range rows {
			if limit > 0 && i == limit {
				page.Cursor = rows[i-1].SK
				break
			}
			item, err := row.item()
			if err != nil {
				return backoff.Permanent(err)
			}
			page.Items = append(page.Items, item)
		}
		return nil
	})
	return page, err
}

func (s *Store) QueryIndex(ctx context.Context, q ports.IndexQuery) (ports.Page, error) {
	var page ports.Page
	err := s.execute(ctx, "queryIndex", func(ctx context.Context) error {
		tx := s.db.WithContext(ctx).Model(&itemRow{}).Where("gsi1pk = ?", q.PK)
		var order string
		switch q.Index {
		case ports.EntityTimeIndex:
			tx = tx.Where("start_ts IS NOT NULL")
			if q.AfterTimestamp != nil {
				tx = tx.Where("start_ts > ?", *q.AfterTimestamp)
			}
			order = "start_ts ASC, sk ASC"
			if q.Reverse {
				order = "start_ts DESC, sk DESC"
			}
		case ports.UserGroupIndex:
			tx = tx.Where("gsi1sk IS NOT NULL")
			if q.SortPrefix != "" {
				tx = tx.Where("gsi1sk LIKE ?", likePrefix(q.SortPrefix))
			}
			order = "gsi1sk ASC"
			if q.Reverse {
				order = "gsi1sk DESC"
			}
		default:
			return backoff.Permanent(errors.New("unknown index " + q.Index))
		}
		var rows []itemRow
		if err := tx.Order(order).Find(&rows).Error; err != nil {
			return err
		}
		page = ports.Page{}
		for _, row := range rows {
			item, err := row.item()
			if err != nil {
				return backoff.Permanent(err)
			}
			page.Items = append(page.Items, item)
			if q.Limit > 0 && len(page.Items) == q.Limit {
				break
			}
		}
		return nil
	})
	return page, err
}

func (s *Store) BatchWrite(ctx context.Context, ops []ports.BatchOp) error {
	for start := 0; start < len(ops); start += ports.MaxBatchSize {
		end := start + ports.MaxBatchSize
		if end > len(ops) {
			end = len(ops)
		}
		chunk := ops[start:end]
		err := s.execute(ctx, "batchWrite", func(ctx context.Context) error {
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				for _, op := range chunk {
					if op.Put != nil {
						row, err := rowFromItem(op.Put)
						if err != nil {
							return backoff.Permanent(err)
						}
						if err := putInTx(tx, row, ports.NoCondition()); err != nil {
							return err
						}
						continue
					}
					if err := tx.Where("pk = ? AND sk = ?", op.DeletePK, op.DeleteSK).
						Delete(&itemRow{}).Error; err != nil {
						return err
					}
				}
				return nil
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Transact(ctx context.Context, ops []ports.TransactOp) error {
	if len(ops) > ports.MaxTransactSize {
		return errors.New("transact exceeds op limit")
	}
	return s.execute(ctx, "transact", func(ctx context.Context) error {
		// Serializable isolation closes the window between a not-exists
		// check and the later insert; serialization failures retry (40001).
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			// Rows are locked in key order so concurrent transacts touching
			// the same items cannot deadlock.
			ordered := make([]int, len(ops))
			for i := range ops {
				ordered[i] = i
			}
			sort.Slice(ordered, func(a, b int) bool {
				ka := opKey(ops[ordered[a]])
				kb := opKey(ops[ordered[b]])
				return ka < kb
			})

			reasons := make([]ports.CancelReason, len(ops))
			failed := false
			for i := range reasons {
				reasons[i] = ports.CancelReason{Index: i, Code: ports.CancelNone}
			}
			for _, i := range ordered {
				op := ops[i]
				var condition ports.Condition
				var pk, sk string
				switch {
				case op.Put != nil:
					pk, sk, condition = op.Put.Item.PK(), op.Put.Item.SK(), op.Put.Condition
				case op.Update != nil:
					pk, sk, condition = op.Update.PK, op.Update.SK, op.Update.Condition
				case op.Delete != nil:
					pk, sk, condition = op.Delete.PK, op.Delete.SK, op.Delete.Condition
				default:
					return backoff.Permanent(errors.New("empty transact op"))
				}
				if _, err := lockAndCheck(tx, pk, sk, condition); err != nil {
					if errors.Is(err, ports.ErrConditionFailed) {
						reasons[i].Code = ports.CancelConditionFailed
						failed = true
						continue
					}
					return err
				}
			}
			if failed {
				return &ports.TransactionCanceledError{Reasons: reasons}
			}

			for _, op := range ops {
				switch {
				case op.Put != nil:
					row, err := rowFromItem(op.Put.Item)
					if err != nil {
						return backoff.Permanent(err)
					}
					// Conditions were evaluated above under lock.
					if err := putInTx(tx, row, ports.NoCondition()); err != nil {
						return err
					}
				case op.Update != nil:
					if err := updateInTx(tx, op.Update.PK, op.Update.SK, op.Update.Update, ports.NoCondition()); err != nil {
						return err
					}
				case op.Delete != nil:
					if err := tx.Where("pk = ? AND sk = ?", op.Delete.PK, op.Delete.SK).
						Delete(&itemRow{}).Error; err != nil {
						return err
					}
				}
			}
			return nil
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})
	})
}

func opKey(op ports.TransactOp) string {
	switch {
	case op.Put != nil:
		return op.Put.Item.PK() + "\x00" + op.Put.Item.SK()
	case op.Update != nil:
		return op.Update.PK + "\x00" + op.Update.SK
	case op.Delete != nil:
		return op.Delete.PK + "\x00" + op.Delete.SK
	default:
		return ""
	}
}

// GroupPartitions lists every group partition present in the table. The
// reconciliation sweeper is the only caller; the Store port deliberately has
// no full-table scan.
func (s *Store) GroupPartitions(ctx context.Context) ([]string, error) {
	var pks []string
	err := s.execute(ctx, "group_partitions", func(ctx context.Context) error {
		return s.db.WithContext(ctx).
			Model(&itemRow{}).
			Distinct("pk").
			Where("pk LIKE ?", likePrefix(keys.GroupPKPrefix)).
			Order("pk").
			Pluck("pk", &pks).Error
	})
	if err != nil {
		return nil, err
	}
	groupIDs := make([]string, 0, len(pks))
	for _, pk := range pks {
		groupID, err := keys.ParseGroupPK(pk)
		if err != nil {
			continue
		}
		groupIDs = append(groupIDs, groupID)
	}
	return groupIDs, nil
}

func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}

var _ ports.Store = (*Store)(nil)
