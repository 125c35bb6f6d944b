package societyadmin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"societyadmin/societyapi"
)

const (
	auditPageSize   = 50
	timestampLayout = dateLayout + " 15:04"
)

type SnapshotRow struct {
	Taken            string `json:"taken"`
	TotalRevenue     string `json:"totalRevenue"`
	LoanInterest     string `json:"loanInterest"`
	PenaltyIncome    string `json:"penaltyIncome"`
	ReceiptIncome    string `json:"receiptIncome"`
	FeeIncome        string `json:"feeIncome"`
	OutstandingLoans string `json:"outstandingLoans"`
	Change           string `json:"change"`
}

type AuditRow struct {
	When   string `json:"when"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Target string `json:"target"`
	Detail string `json:"detail"`
}

func amountOf(d decimal.Decimal) societyapi.Amount {
	return societyapi.Amount{Decimal: d}
}

// RevenueHistory lists the snapshots taken since the given time, newest first, each with
// the change in total revenue against the snapshot before it.
func RevenueHistory(ctx context.Context, repo SnapshotRepository, f Formatter, since time.Time) ([]SnapshotRow, error) {
	if repo == nil {
		return nil, ErrHistoryDisabled
	}

	snapshots, err := repo.GetRevenueSnapshots(ctx, since)
	if err != nil {
		return nil, err
	}

	rows := make([]SnapshotRow, len(snapshots))
	for i, s := range snapshots {
		change := missingText
		if i > 0 {
			change = f.Currency(s.TotalRevenue.Sub(snapshots[i-1].TotalRevenue))
		}

		rows[len(snapshots)-1-i] = SnapshotRow{
			Taken:            s.CreatedAt.Format(timestampLayout),
			TotalRevenue:     f.Currency(s.TotalRevenue),
			LoanInterest:     f.Amount(amountOf(s.LoanInterest)),
			PenaltyIncome:    f.Amount(amountOf(s.PenaltyIncome)),
			ReceiptIncome:    f.Amount(amountOf(s.ReceiptIncome)),
			FeeIncome:        f.Amount(amountOf(s.FeeIncome)),
			OutstandingLoans: f.Amount(amountOf(s.OutstandingLoans)),
			Change:           change,
		}
	}

	return rows, nil
}

// LastCaptured reports when the newest revenue snapshot was taken, or "" when there is
// none yet.
func LastCaptured(ctx context.Context, repo SnapshotRepository) (string, error) {
	if repo == nil {
		return "", ErrHistoryDisabled
	}

	latest, err := repo.GetLatestRevenueSnapshot(ctx)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	return latest.CreatedAt.Format(timestampLayout), nil
}

func RecentAudit(ctx context.Context, repo AuditRepository) ([]AuditRow, error) {
	if repo == nil {
		return nil, ErrHistoryDisabled
	}

	events, err := repo.GetRecentAuditEvents(ctx, auditPageSize)
	if err != nil {
		return nil, err
	}

	return mapItems(events, func(e AuditEvent) AuditRow {
		return AuditRow{
			When:   e.CreatedAt.Format(timestampLayout),
			Actor:  e.Actor,
			Action: HumanizeLabel(strings.ReplaceAll(e.Action, ".", " ")),
			Target: orMissing(e.Target),
			Detail: e.Detail,
		}
	}), nil
}
