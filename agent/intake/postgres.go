package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	pgUniqueViolation = "23505"
	maxWriteAttempts  = 3
	retryBackoff      = 100 * time.Millisecond
)

type requestRow struct {
	bun.BaseModel `bun:"table:service_requests,alias:sr"`

	Seq               int64     `bun:"seq,autoincrement"`
	ID                string    `bun:"id,pk"`
	CustomerName      string    `bun:"customer_name,notnull"`
	ServiceAddress    string    `bun:"service_address,notnull"`
	UnitInfo          string    `bun:"unit_info"`
	Ownership         string    `bun:"ownership,notnull"`
	CallbackPrimary   string    `bun:"callback_primary,notnull"`
	CallbackAlternate string    `bun:"callback_alternate"`
	IssueType         string    `bun:"issue_type,notnull"`
	IsEmergency       bool      `bun:"is_emergency,notnull"`
	IssueDescription  string    `bun:"issue_description,notnull"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
	Status            string    `bun:"status,notnull"`
}

func rowFromRequest(req *Request) *requestRow {
	return &requestRow{
		ID:                req.ID,
		CustomerName:      req.CustomerName,
		ServiceAddress:    req.ServiceAddress,
		UnitInfo:          req.UnitInfo,
		Ownership:         string(req.Ownership),
		CallbackPrimary:   req.CallbackPrimary,
		CallbackAlternate: req.CallbackAlternate,
		IssueType:         string(req.IssueType),
		IsEmergency:       req.IsEmergency,
		IssueDescription:  req.IssueDescription,
		CreatedAt:         req.CreatedAt,
		Status:            string(req.Status),
	}
}

func (row *requestRow) toRequest() *Request {
	return &Request{
		ID:                row.ID,
		CustomerName:      row.CustomerName,
		ServiceAddress:    row.ServiceAddress,
		UnitInfo:          row.UnitInfo,
		Ownership:         Ownership(row.Ownership),
		CallbackPrimary:   row.CallbackPrimary,
		CallbackAlternate: row.CallbackAlternate,
		IssueType:         IssueType(row.IssueType),
		IsEmergency:       row.IsEmergency,
		IssueDescription:  row.IssueDescription,
		CreatedAt:         row.CreatedAt,
		Status:            Status(row.Status),
	}
}

// PostgresRepository is a durable Repository backend. Same contract as
// MemoryRepository; transient write failures are retried with bounded
// attempts before surfacing ErrStorageUnavailable.
type PostgresRepository struct {
	db  *bun.DB
	now func() time.Time
}

func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &PostgresRepository{db: db, now: time.Now}, nil
}

// Init creates the backing table if it does not exist.
func (r *PostgresRepository) Init(ctx context.Context) error {
	_, err := r.db.NewCreateTable().
		Model((*requestRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create service_requests table: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) Create(ctx context.Context, req *Request) error {
	if req == nil || req.ID == "" {
		return fmt.Errorf("%w: request id is empty", ErrIncompleteRequest)
	}

	row := rowFromRequest(req)
	if row.Status == "" {
		row.Status = string(StatusPending)
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = r.now().UTC()
	}

	err := withRetry(ctx, func() error {
		_, err := r.db.NewInsert().Model(row).Exec(ctx)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: id=%s", ErrDuplicateID, req.ID)
		}
		return err
	}

	req.Status = Status(row.Status)
	req.CreatedAt = row.CreatedAt
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Request, error) {
	row := new(requestRow)
	err := r.db.NewSelect().Model(row).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id=%s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return row.toRequest(), nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Request, error) {
	var rows []requestRow
	err := r.db.NewSelect().Model(&rows).Order("seq ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	out := make([]*Request, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toRequest())
	}
	return out, nil
}

// UpdateStatus reads and updates the row in one transaction so the forward-only
// rule holds under concurrent writers, and returns the record as updated.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, next Status) (*Request, error) {
	var updated *Request
	err := withRetry(ctx, func() error {
		return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			row := new(requestRow)
			err := tx.NewSelect().Model(row).Where("id = ?", id).For("UPDATE").Scan(ctx)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("%w: id=%s", ErrNotFound, id)
				}
				return err
			}
			if !Status(row.Status).CanAdvanceTo(next) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, row.Status, next)
			}
			_, err = tx.NewUpdate().
				Model(row).
				Set("status = ?", string(next)).
				Where("id = ?", id).
				Exec(ctx)
			if err != nil {
				return err
			}
			row.Status = string(next)
			updated = row.toRequest()
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PostgresRepository) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := r.db.NewSelect().
		Model((*requestRow)(nil)).
		ColumnExpr("count(*) AS total_count").
		ColumnExpr("count(*) FILTER (WHERE is_emergency) AS emergency_count").
		Scan(ctx, &stats.TotalCount, &stats.EmergencyCount)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return stats, nil
}

// withRetry retries transient storage failures. Domain errors (not found,
// duplicate id, invalid transition) pass through untouched; exhaustion
// surfaces as ErrStorageUnavailable so callers can tell the caller to retry.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrStorageUnavailable, ctx.Err())
			case <-time.After(retryBackoff << attempt):
			}
		}
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) ||
			errors.Is(err, ErrInvalidStatusTransition) ||
			isUniqueViolation(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == pgUniqueViolation
	}
	return false
}
