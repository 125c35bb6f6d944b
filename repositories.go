package societyadmin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"
)

type RevenueSnapshot struct {
	Id               string
	TotalRevenue     decimal.Decimal
	LoanInterest     decimal.Decimal
	PenaltyIncome    decimal.Decimal
	ReceiptIncome    decimal.Decimal
	FeeIncome        decimal.Decimal
	OutstandingLoans decimal.Decimal
	CreatedAt        time.Time
}

type AuditEvent struct {
	Id        string
	Actor     string
	Action    string
	Target    string
	Detail    string
	CreatedAt time.Time
}

type SnapshotRepository interface {
	SaveRevenueSnapshot(ctx context.Context, s RevenueSnapshot) (RevenueSnapshot, error)
	GetLatestRevenueSnapshot(ctx context.Context) (RevenueSnapshot, error)
	GetRevenueSnapshots(ctx context.Context, since time.Time) ([]RevenueSnapshot, error)
}

type AuditRepository interface {
	SaveAuditEvent(ctx context.Context, e AuditEvent) error
	GetRecentAuditEvents(ctx context.Context, limit int) ([]AuditEvent, error)
}

type PostgresSnapshotRepository struct {
	Conn DbConn
}

// SaveRevenueSnapshot saves the snapshot and returns it with Id and CreatedAt populated
func (r PostgresSnapshotRepository) SaveRevenueSnapshot(ctx context.Context, s RevenueSnapshot) (RevenueSnapshot, error) {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	err := r.Conn.QueryRow(ctx, `
		INSERT INTO revenue_snapshot (
			 total_revenue
			,loan_interest
			,penalty_income
			,receipt_income
			,fee_income
			,outstanding_loans
			,created_at
		)
		VALUES ($1::numeric, $2::numeric, $3::numeric, $4::numeric, $5::numeric, $6::numeric, $7)
		RETURNING id::text;
		`,
		s.TotalRevenue.String(),
		s.LoanInterest.String(),
		s.PenaltyIncome.String(),
		s.ReceiptIncome.String(),
		s.FeeIncome.String(),
		s.OutstandingLoans.String(),
		s.CreatedAt,
	).Scan(&s.Id)
	if err != nil {
		return RevenueSnapshot{}, fmt.Errorf("unable to save revenue snapshot: %w", err)
	}

	return s, nil
}

const selectSnapshot = `
		SELECT
			 id::text
			,total_revenue::text
			,loan_interest::text
			,penalty_income::text
			,receipt_income::text
			,fee_income::text
			,outstanding_loans::text
			,created_at
		FROM revenue_snapshot
`

func scanSnapshot(row pgx.Row) (RevenueSnapshot, error) {
	var s RevenueSnapshot
	var total, interest, penalties, receipts, fees, outstanding string

	err := row.Scan(&s.Id, &total, &interest, &penalties, &receipts, &fees, &outstanding, &s.CreatedAt)
	if err != nil {
		return RevenueSnapshot{}, err
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&s.TotalRevenue, total},
		{&s.LoanInterest, interest},
		{&s.PenaltyIncome, penalties},
		{&s.ReceiptIncome, receipts},
		{&s.FeeIncome, fees},
		{&s.OutstandingLoans, outstanding},
	} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return RevenueSnapshot{}, fmt.Errorf("unable to parse snapshot amount %q: %w", f.src, err)
		}
		*f.dst = d
	}

	return s, nil
}

func (r PostgresSnapshotRepository) GetLatestRevenueSnapshot(ctx context.Context) (RevenueSnapshot, error) {
	s, err := scanSnapshot(r.Conn.QueryRow(ctx, selectSnapshot+`
		ORDER BY created_at DESC
		LIMIT 1;
	`))
	if errors.Is(err, pgx.ErrNoRows) {
		return RevenueSnapshot{}, ErrNotFound
	}
	if err != nil {
		return RevenueSnapshot{}, fmt.Errorf("unable to get latest revenue snapshot: %w", err)
	}

	return s, nil
}

// GetRevenueSnapshots returns the snapshots taken since the given time, oldest first.
func (r PostgresSnapshotRepository) GetRevenueSnapshots(ctx context.Context, since time.Time) ([]RevenueSnapshot, error) {
	rows, err := r.Conn.Query(ctx, selectSnapshot+`
		WHERE created_at >= $1
		ORDER BY created_at ASC;
		`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to get revenue snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []RevenueSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to read revenue snapshot row: %w", err)
		}

		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

type PostgresAuditRepository struct {
	Conn DbConn
}

func (r PostgresAuditRepository) SaveAuditEvent(ctx context.Context, e AuditEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := r.Conn.Exec(ctx, `
		INSERT INTO audit_event (actor, action, target, detail, created_at)
		VALUES ($1, $2, $3, $4, $5);
		`,
		e.Actor,
		e.Action,
		e.Target,
		e.Detail,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("unable to save audit event: %w", err)
	}

	return nil
}

func (r PostgresAuditRepository) GetRecentAuditEvents(ctx context.Context, limit int) ([]AuditEvent, error) {
	rows, err := r.Conn.Query(ctx, `
		SELECT
			 id::text
			,actor
			,action
			,target
			,detail
			,created_at
		FROM audit_event
		ORDER BY created_at DESC
		LIMIT $1;
		`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to get audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		e := AuditEvent{}

		err := rows.Scan(&e.Id, &e.Actor, &e.Action, &e.Target, &e.Detail, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to read audit event row: %w", err)
		}

		events = append(events, e)
	}

	return events, rows.Err()
}
