package societyadmin

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"societyadmin/societyapi"
)

// RevenueSource is satisfied by societyapi.AuthorizedClient.
type RevenueSource interface {
	GetRevenueSummary(ctx context.Context) (societyapi.RevenueSummary, error)
}

func SnapshotFromSummary(s societyapi.RevenueSummary, at time.Time) RevenueSnapshot {
	return RevenueSnapshot{
		TotalRevenue:     totalRevenue(s),
		LoanInterest:     s.LoanInterest.Decimal,
		PenaltyIncome:    s.PenaltyIncome.Decimal,
		ReceiptIncome:    s.ReceiptIncome.Decimal,
		FeeIncome:        s.FeeIncome.Decimal,
		OutstandingLoans: s.OutstandingLoans.Decimal,
		CreatedAt:        at.UTC(),
	}
}

// CaptureRevenueSnapshot fetches the current revenue summary and stores it.
func CaptureRevenueSnapshot(ctx context.Context, source RevenueSource, repo SnapshotRepository) (RevenueSnapshot, error) {
	summary, err := source.GetRevenueSummary(ctx)
	if err != nil {
		return RevenueSnapshot{}, fmt.Errorf("unable to fetch revenue summary: %w", err)
	}

	return repo.SaveRevenueSnapshot(ctx, SnapshotFromSummary(summary, time.Now()))
}

// RunRevenueSnapshots captures a snapshot immediately and then once per interval until
// ctx is done. Failures are sent on the returned channel and do not stop the loop. The
// channel is closed when the loop exits.
func RunRevenueSnapshots(ctx context.Context, source RevenueSource, repo SnapshotRepository, interval time.Duration, logger *zap.Logger) <-chan error {
	errs := make(chan error)

	go func() {
		defer close(errs)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			snapshot, err := CaptureRevenueSnapshot(ctx, source, repo)
			if err != nil {
				select {
				case errs <- err:
				case <-ctx.Done():
					return
				}
			} else {
				logger.Info("captured revenue snapshot",
					zap.String("id", snapshot.Id),
					zap.String("total_revenue", snapshot.TotalRevenue.StringFixed(2)),
				)
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	return errs
}
