package societyadmin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"societyadmin/societyapi"
)

const testToken = "token-1"

// fakeBackend serves canned society API responses and counts requests per path.
type fakeBackend struct {
	mu        sync.Mutex
	hits      map[string]int
	responses map[string]string
	statuses  map[string]int
	bodies    map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		hits:     map[string]int{},
		statuses: map[string]int{},
		bodies:   map[string]string{},
		responses: map[string]string{
			"/loans": `{"success": true, "data": {"data": {"loans": [
				{"id": 1, "memberId": "m1", "memberName": "Jane Doe", "loanNumber": "LN-001", "loanType": "personal_loan",
				 "principal": "10,000.00", "interestRate": "12.5", "termMonths": "12", "balance": 4000, "status": "active",
				 "disbursedAt": "2024-01-10", "dueDate": "2024-02-01"},
				{"_id": "l2", "member": {"_id": "m2", "firstName": "John", "lastName": "Smith"}, "loanNumber": "LN-002",
				 "principal": 5000, "balance": 0, "status": "paid", "disbursedAt": "2024-03-05T10:00:00Z"},
				{"id": "l3", "memberId": "m1", "memberName": "Jane Doe", "loanNumber": "LN-003",
				 "principal": 2500, "balance": "2500", "status": "pending", "disbursedAt": "2024-05-20", "dueDate": "2025-05-20"}
			]}}}`,
			"/receipts": `[
				{"id": "r1", "memberId": "m1", "memberName": "Jane Doe", "receiptNumber": "RC-1", "amount": 1500.5,
				 "purpose": "loan_repayment", "paidAt": "2024-04-15", "status": "verified", "imagePath": "uploads/r1.png"},
				{"id": "r2", "memberId": "m2", "memberName": "John Smith", "receiptNumber": "RC-2", "amount": "250",
				 "paidAt": "2024-05-02", "status": "rejected"},
				{"id": "r3", "memberId": "m1", "memberName": "Jane Doe", "receiptNumber": "RC-3", "amount": 300,
				 "createdAt": "2024-05-10 08:30:00", "status": "pending"}
			]`,
			"/cd-penalties": `{"data": {"cdPenalties": [
				{"id": "p1", "memberId": "m1", "memberName": "Jane Doe", "certificateNumber": "CD-9", "penaltyAmount": "75.25", "status": "paid"}
			]}}`,
			"/bank-documents": `{"success": true, "data": [
				{"id": "d1", "memberId": "m1", "memberName": "Jane Doe", "bankName": "First Bank", "accountNumber": "0123456789",
				 "filePath": "/docs/d1.pdf", "status": "pending", "uploadedAt": "2024-05-01"},
				{"id": "d2", "memberId": "m2", "memberName": "John Smith", "bankName": "Second Bank", "status": "approved",
				 "uploadedAt": "2024-04-01"}
			]}`,
			"/bank-documents/d1/status": `{"success": true, "data": {"document": {"id": "d1", "memberName": "Jane Doe", "status": "approved"}}}`,
			"/members": `{"data": {"members": [
				{"_id": "m1", "memberNumber": "SOC-1", "firstName": "Jane", "lastName": "Doe", "status": "active", "joinedAt": "2023-01-01"},
				{"_id": "m2", "memberNumber": "SOC-2", "firstName": "John", "lastName": "Smith", "status": "inactive", "joinedAt": "2023-06-01"}
			]}}`,
			"/members/m1": `{"data": {"member": {"_id": "m1", "memberNumber": "SOC-1", "firstName": "Jane", "lastName": "Doe", "status": "active"}}}`,
			"/revenue/summary": `{"data": {"summary": {"loanInterest": "1200", "penaltyIncome": 75.25, "receiptIncome": "1800.5",
				"feeIncome": null, "outstandingLoans": 6500}}}`,
		},
	}
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.hits[r.URL.Path]++
	if body, err := io.ReadAll(r.Body); err == nil && len(body) > 0 {
		b.bodies[r.URL.Path] = string(body)
	}

	w.Header().Set("Content-Type", "application/json")

	if r.Header.Get("Authorization") != "Bearer "+testToken {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprintln(w, `{"success": false, "message": "invalid token"}`)
		return
	}

	if status, ok := b.statuses[r.URL.Path]; ok {
		w.WriteHeader(status)
		fmt.Fprintln(w, `{"success": false, "message": "backend failure"}`)
		return
	}

	body, ok := b.responses[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintln(w, `{"success": false, "message": "not found"}`)
		return
	}

	fmt.Fprintln(w, body)
}

func (b *fakeBackend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *fakeBackend) Body(path string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bodies[path]
}

func (b *fakeBackend) Fail(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statuses[path] = status
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDashboard(t *testing.T, backend http.Handler) *Dashboard {
	t.Helper()

	ts := httptest.NewServer(backend)
	t.Cleanup(ts.Close)

	client, err := societyapi.NewClient(ts.URL)
	require.NoError(t, err)

	d := NewDashboard(client, NewMemoryCache(), Config{
		CacheTTL:       time.Minute,
		CurrencySymbol: "$",
		ImageBaseURL:   "https://files.example.com",
	}, zap.NewNop())
	d.now = func() time.Time { return testNow }

	return d
}

type memoryAuditRepository struct {
	mu     sync.Mutex
	events []AuditEvent
	err    error
}

func (r *memoryAuditRepository) SaveAuditEvent(_ context.Context, e AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return r.err
	}
	e.Id = fmt.Sprintf("event-%d", len(r.events)+1)
	r.events = append(r.events, e)
	return nil
}

func (r *memoryAuditRepository) GetRecentAuditEvents(_ context.Context, limit int) ([]AuditEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := append([]AuditEvent(nil), r.events...)
	sort.SliceStable(events, func(i, j int) bool { return events[i].CreatedAt.After(events[j].CreatedAt) })
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r *memoryAuditRepository) Events() []AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditEvent(nil), r.events...)
}

type memorySnapshotRepository struct {
	mu        sync.Mutex
	snapshots []RevenueSnapshot
	err       error
}

func (r *memorySnapshotRepository) SaveRevenueSnapshot(_ context.Context, s RevenueSnapshot) (RevenueSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return RevenueSnapshot{}, r.err
	}
	s.Id = fmt.Sprintf("snapshot-%d", len(r.snapshots)+1)
	r.snapshots = append(r.snapshots, s)
	return s, nil
}

func (r *memorySnapshotRepository) GetLatestRevenueSnapshot(_ context.Context) (RevenueSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return RevenueSnapshot{}, r.err
	}
	if len(r.snapshots) == 0 {
		return RevenueSnapshot{}, ErrNotFound
	}
	return r.snapshots[len(r.snapshots)-1], nil
}

func (r *memorySnapshotRepository) GetRevenueSnapshots(_ context.Context, since time.Time) ([]RevenueSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	var out []RevenueSnapshot
	for _, s := range r.snapshots {
		if !s.CreatedAt.Before(since) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memorySnapshotRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

var errBoom = errors.New("boom")
