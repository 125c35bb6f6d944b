package societyadmin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"societyadmin/societyapi"
)

const (
	resourceLoans     = "loans"
	resourceReceipts  = "receipts"
	resourcePenalties = "penalties"
	resourceDocuments = "documents"
	resourceMembers   = "members"
	resourceRevenue   = "revenue"

	overviewListSize = 5
	revenueMonths    = 12
)

var cachedResources = []string{resourceLoans, resourceReceipts, resourcePenalties, resourceDocuments, resourceMembers, resourceRevenue}

// Dashboard loads backend data on behalf of a signed in admin and shapes it for display.
// Decoded lists are cached per token for a short time so that paging through a table
// does not refetch it.
type Dashboard struct {
	client       societyapi.Client
	cache        CacheRepository
	cacheTTL     time.Duration
	format       Formatter
	imageBaseURL string
	audit        AuditRepository
	logger       *zap.Logger
	now          func() time.Time
}

func NewDashboard(client societyapi.Client, cache CacheRepository, cfg Config, logger *zap.Logger) *Dashboard {
	return &Dashboard{
		client:       client,
		cache:        cache,
		cacheTTL:     cfg.CacheTTL,
		format:       NewFormatter(cfg.CurrencySymbol),
		imageBaseURL: cfg.ImageBaseURL,
		logger:       logger,
		now:          time.Now,
	}
}

// SetAuditRepository enables recording of admin actions.
func (d *Dashboard) SetAuditRepository(audit AuditRepository) {
	d.audit = audit
}

func (d *Dashboard) Formatter() Formatter {
	return d.format
}

func (d *Dashboard) authorized(token string) societyapi.AuthorizedClient {
	return societyapi.NewAuthorizedClient(d.client, token)
}

func cacheKey(token, resource string) string {
	sum := sha256.Sum256([]byte(token))
	return "resp:" + hex.EncodeToString(sum[:8]) + ":" + resource
}

func cached[T any](ctx context.Context, d *Dashboard, token, resource string, fetch func(context.Context) (T, error)) (T, error) {
	key := cacheKey(token, resource)

	if d.cacheTTL > 0 {
		if raw, ok := d.cache.Get(ctx, key); ok {
			var v T
			if err := json.Unmarshal([]byte(raw), &v); err == nil {
				return v, nil
			}
			d.logger.Warn("discarding unreadable cache entry", zap.String("resource", resource))
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}

	if d.cacheTTL > 0 {
		b, err := json.Marshal(v)
		if err == nil {
			err = d.cache.Set(ctx, key, string(b), d.cacheTTL)
		}
		if err != nil {
			d.logger.Warn("unable to cache backend response", zap.String("resource", resource), zap.Error(err))
		}
	}

	return v, nil
}

// Invalidate drops every cached list for the token.
func (d *Dashboard) Invalidate(ctx context.Context, token string) {
	for _, resource := range cachedResources {
		if err := d.cache.Delete(ctx, cacheKey(token, resource)); err != nil {
			d.logger.Warn("unable to drop cached response", zap.String("resource", resource), zap.Error(err))
		}
	}
}

func (d *Dashboard) loans(ctx context.Context, token string) ([]societyapi.Loan, error) {
	return cached(ctx, d, token, resourceLoans, d.authorized(token).GetLoans)
}

func (d *Dashboard) receipts(ctx context.Context, token string) ([]societyapi.Receipt, error) {
	return cached(ctx, d, token, resourceReceipts, d.authorized(token).GetReceipts)
}

func (d *Dashboard) penalties(ctx context.Context, token string) ([]societyapi.Penalty, error) {
	return cached(ctx, d, token, resourcePenalties, d.authorized(token).GetPenalties)
}

func (d *Dashboard) documents(ctx context.Context, token string) ([]societyapi.BankDocument, error) {
	return cached(ctx, d, token, resourceDocuments, d.authorized(token).GetBankDocuments)
}

func (d *Dashboard) members(ctx context.Context, token string) ([]societyapi.Member, error) {
	return cached(ctx, d, token, resourceMembers, d.authorized(token).GetMembers)
}

func (d *Dashboard) revenue(ctx context.Context, token string) (societyapi.RevenueSummary, error) {
	return cached(ctx, d, token, resourceRevenue, d.authorized(token).GetRevenueSummary)
}

func compareDates(a, b societyapi.Date) int {
	return a.Compare(b.Time)
}

func compareAmounts(a, b societyapi.Amount) int {
	return a.Cmp(b.Decimal)
}

func compareText(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}

func loanDate(l societyapi.Loan) societyapi.Date {
	if !l.DisbursedAt.IsZero() {
		return l.DisbursedAt
	}
	return l.CreatedAt
}

var loanComparators = Comparators[societyapi.Loan]{
	"date":      func(a, b societyapi.Loan) int { return compareDates(loanDate(a), loanDate(b)) },
	"due":       func(a, b societyapi.Loan) int { return compareDates(a.DueDate, b.DueDate) },
	"principal": func(a, b societyapi.Loan) int { return compareAmounts(a.Principal, b.Principal) },
	"balance":   func(a, b societyapi.Loan) int { return compareAmounts(a.Balance, b.Balance) },
	"member":    func(a, b societyapi.Loan) int { return compareText(a.DisplayMember(), b.DisplayMember()) },
	"status":    func(a, b societyapi.Loan) int { return compareText(a.Status, b.Status) },
}

func (d *Dashboard) Loans(ctx context.Context, token string, q Query) (Page[LoanRow], error) {
	loans, err := d.loans(ctx, token)
	if err != nil {
		return Page[LoanRow]{}, err
	}

	page := ListPage(loans, q,
		func(l societyapi.Loan) string { return l.Status },
		func(l societyapi.Loan) []string {
			return []string{l.LoanNumber, l.DisplayMember(), l.LoanType, HumanizeLabel(l.LoanType)}
		},
		loanComparators, "date",
	)

	return mapPage(page, d.loanRow), nil
}

// Loan fetches a single loan with its repayment schedule.
func (d *Dashboard) Loan(ctx context.Context, token, id string) (LoanDetail, error) {
	loan, err := d.authorized(token).GetLoan(ctx, id)
	if err != nil {
		return LoanDetail{}, err
	}
	return d.loanDetail(loan), nil
}

var receiptComparators = Comparators[societyapi.Receipt]{
	"date":   func(a, b societyapi.Receipt) int { return compareDates(a.When(), b.When()) },
	"amount": func(a, b societyapi.Receipt) int { return compareAmounts(a.Amount, b.Amount) },
	"member": func(a, b societyapi.Receipt) int { return compareText(a.DisplayMember(), b.DisplayMember()) },
	"status": func(a, b societyapi.Receipt) int { return compareText(a.Status, b.Status) },
}

func receiptText(r societyapi.Receipt) []string {
	return []string{r.ReceiptNumber, r.DisplayMember(), r.Purpose, HumanizeLabel(r.Purpose), r.PaymentMethod, r.Reference}
}

func (d *Dashboard) Receipts(ctx context.Context, token string, q Query) (Page[ReceiptRow], error) {
	receipts, err := d.receipts(ctx, token)
	if err != nil {
		return Page[ReceiptRow]{}, err
	}

	page := ListPage(receipts, q,
		func(r societyapi.Receipt) string { return r.Status },
		receiptText,
		receiptComparators, "date",
	)

	return mapPage(page, d.receiptRow), nil
}

var penaltyComparators = Comparators[societyapi.Penalty]{
	"date":   func(a, b societyapi.Penalty) int { return compareDates(penaltyDate(a), penaltyDate(b)) },
	"amount": func(a, b societyapi.Penalty) int { return compareAmounts(a.PenaltyAmount, b.PenaltyAmount) },
	"member": func(a, b societyapi.Penalty) int { return compareText(a.DisplayMember(), b.DisplayMember()) },
	"status": func(a, b societyapi.Penalty) int { return compareText(a.Status, b.Status) },
}

func (d *Dashboard) Penalties(ctx context.Context, token string, q Query) (Page[PenaltyRow], error) {
	penalties, err := d.penalties(ctx, token)
	if err != nil {
		return Page[PenaltyRow]{}, err
	}

	page := ListPage(penalties, q,
		func(p societyapi.Penalty) string { return p.Status },
		func(p societyapi.Penalty) []string {
			return []string{p.CertificateNumber, p.DisplayMember(), p.Reason}
		},
		penaltyComparators, "date",
	)

	return mapPage(page, d.penaltyRow), nil
}

var documentComparators = Comparators[societyapi.BankDocument]{
	"date":   func(a, b societyapi.BankDocument) int { return compareDates(a.When(), b.When()) },
	"member": func(a, b societyapi.BankDocument) int { return compareText(a.DisplayMember(), b.DisplayMember()) },
	"bank":   func(a, b societyapi.BankDocument) int { return compareText(a.BankName, b.BankName) },
	"status": func(a, b societyapi.BankDocument) int { return compareText(a.Status, b.Status) },
}

func documentText(doc societyapi.BankDocument) []string {
	return []string{doc.DisplayMember(), doc.BankName, doc.AccountName, doc.DocumentType, HumanizeLabel(doc.DocumentType), MaskAccountNumber(doc.AccountNumber)}
}

func (d *Dashboard) BankDocuments(ctx context.Context, token string, q Query) (Page[DocumentRow], error) {
	documents, err := d.documents(ctx, token)
	if err != nil {
		return Page[DocumentRow]{}, err
	}

	page := ListPage(documents, q,
		func(doc societyapi.BankDocument) string { return doc.Status },
		documentText,
		documentComparators, "date",
	)

	return mapPage(page, d.documentRow), nil
}

// ReviewBankDocument approves or rejects a document on the backend, drops the cached
// document list and records the action.
func (d *Dashboard) ReviewBankDocument(ctx context.Context, session Session, id, status, note string) (DocumentRow, error) {
	status = NormalizeStatus(status)
	if status != "approved" && status != "rejected" {
		return DocumentRow{}, ErrInvalidReviewStatus
	}

	doc, err := d.authorized(session.Token).UpdateBankDocumentStatus(ctx, id, status, strings.TrimSpace(note))
	if err != nil {
		return DocumentRow{}, err
	}
	if doc.Key() == "" {
		doc.ID = societyapi.ID(id)
		doc.Status = status
	}

	if err := d.cache.Delete(ctx, cacheKey(session.Token, resourceDocuments)); err != nil {
		d.logger.Warn("unable to drop cached documents", zap.Error(err))
	}

	d.Record(ctx, AuditEvent{
		Actor:  session.Username,
		Action: "bank_document." + status,
		Target: id,
		Detail: strings.TrimSpace(note),
	})

	return d.documentRow(doc), nil
}

// Record saves an audit event when auditing is enabled. Failures are logged, not returned,
// so that a completed backend action is never reported as failed.
func (d *Dashboard) Record(ctx context.Context, event AuditEvent) {
	if d.audit == nil {
		return
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = d.now()
	}
	if err := d.audit.SaveAuditEvent(ctx, event); err != nil {
		d.logger.Error("unable to record audit event", zap.String("action", event.Action), zap.Error(err))
	}
}

var memberComparators = Comparators[societyapi.Member]{
	"joined": func(a, b societyapi.Member) int { return compareDates(a.Joined(), b.Joined()) },
	"name":   func(a, b societyapi.Member) int { return compareText(a.FullName(), b.FullName()) },
	"number": func(a, b societyapi.Member) int { return compareText(a.MemberNumber, b.MemberNumber) },
	"status": func(a, b societyapi.Member) int { return compareText(a.Status, b.Status) },
}

func (d *Dashboard) Members(ctx context.Context, token string, q Query) (Page[MemberRow], error) {
	members, err := d.members(ctx, token)
	if err != nil {
		return Page[MemberRow]{}, err
	}

	page := ListPage(members, q,
		func(m societyapi.Member) string { return m.Status },
		func(m societyapi.Member) []string {
			return []string{m.MemberNumber, m.FullName(), m.Email, m.Phone}
		},
		memberComparators, "joined",
	)

	return mapPage(page, d.memberRow), nil
}

// Member gathers a member with their loans, receipts and bank documents.
func (d *Dashboard) Member(ctx context.Context, token, id string) (MemberDetail, error) {
	var (
		member    societyapi.Member
		loans     []societyapi.Loan
		receipts  []societyapi.Receipt
		documents []societyapi.BankDocument
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		member, err = d.authorized(token).GetMember(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		loans, err = d.loans(gctx, token)
		return err
	})
	g.Go(func() (err error) {
		receipts, err = d.receipts(gctx, token)
		return err
	})
	g.Go(func() (err error) {
		documents, err = d.documents(gctx, token)
		return err
	})
	if err := g.Wait(); err != nil {
		return MemberDetail{}, err
	}

	belongs := func(link societyapi.MemberLink) bool {
		return link.MemberKey() == id
	}

	memberLoans := Filter(loans, func(l societyapi.Loan) bool { return belongs(l.MemberLink) })
	memberReceipts := SortItems(Filter(receipts, func(r societyapi.Receipt) bool { return belongs(r.MemberLink) }), Query{Desc: true}, receiptComparators, "date")
	memberDocuments := Filter(documents, func(doc societyapi.BankDocument) bool { return belongs(doc.MemberLink) })

	borrowed, outstanding, paid := decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range memberLoans {
		borrowed = borrowed.Add(l.Principal.Decimal)
		outstanding = outstanding.Add(l.Balance.Decimal)
	}
	for _, r := range memberReceipts {
		if StatusBadge(r.Status).Tone != "danger" {
			paid = paid.Add(r.Amount.Decimal)
		}
	}

	return MemberDetail{
		Member:           d.memberRow(member),
		Loans:            mapItems(memberLoans, d.loanRow),
		Receipts:         mapItems(memberReceipts, d.receiptRow),
		Documents:        mapItems(memberDocuments, d.documentRow),
		TotalBorrowed:    d.format.Currency(borrowed),
		TotalOutstanding: d.format.Currency(outstanding),
		TotalPaid:        d.format.Currency(paid),
	}, nil
}

// Revenue renders the backend revenue summary. When the backend does not break revenue
// down by month the breakdown is derived from receipts.
func (d *Dashboard) Revenue(ctx context.Context, token string) (RevenueView, error) {
	summary, err := d.revenue(ctx, token)
	if err != nil {
		return RevenueView{}, err
	}

	view := RevenueView{Cards: d.revenueCards(summary)}

	months := summary.ByMonth
	if len(months) == 0 {
		receipts, err := d.receipts(ctx, token)
		if err != nil {
			return RevenueView{}, err
		}
		months = monthlyFromReceipts(receipts)
		view.Derived = true
	}
	if len(months) > revenueMonths {
		months = months[len(months)-revenueMonths:]
	}

	peak := decimal.Zero
	for _, m := range months {
		if m.Amount.GreaterThan(peak) {
			peak = m.Amount.Decimal
		}
	}
	for _, m := range months {
		share := 0
		if peak.IsPositive() {
			share = int(m.Amount.Div(peak).Mul(decimal.NewFromInt(100)).IntPart())
		}
		view.Months = append(view.Months, MonthRow{
			Month:  monthLabel(m.Month),
			Amount: d.format.Amount(m.Amount),
			Share:  share,
		})
	}

	return view, nil
}

func totalRevenue(s societyapi.RevenueSummary) decimal.Decimal {
	if !s.TotalRevenue.IsZero() {
		return s.TotalRevenue.Decimal
	}
	return s.LoanInterest.Add(s.PenaltyIncome.Decimal).Add(s.ReceiptIncome.Decimal).Add(s.FeeIncome.Decimal)
}

func (d *Dashboard) revenueCards(s societyapi.RevenueSummary) []RevenueCard {
	return []RevenueCard{
		{Label: "Total revenue", Value: d.format.Currency(totalRevenue(s))},
		{Label: "Loan interest", Value: d.format.Amount(s.LoanInterest)},
		{Label: "CD penalties", Value: d.format.Amount(s.PenaltyIncome)},
		{Label: "Receipts", Value: d.format.Amount(s.ReceiptIncome)},
		{Label: "Fees", Value: d.format.Amount(s.FeeIncome)},
		{Label: "Outstanding loans", Value: d.format.Amount(s.OutstandingLoans)},
	}
}

func monthlyFromReceipts(receipts []societyapi.Receipt) []societyapi.MonthlyRevenue {
	totals := map[string]decimal.Decimal{}
	for _, r := range receipts {
		if r.When().IsZero() || StatusBadge(r.Status).Tone == "danger" {
			continue
		}
		month := r.When().Format("2006-01")
		totals[month] = totals[month].Add(r.Amount.Decimal)
	}

	months := make([]string, 0, len(totals))
	for m := range totals {
		months = append(months, m)
	}
	slices.Sort(months)

	out := make([]societyapi.MonthlyRevenue, 0, len(months))
	for _, m := range months {
		out = append(out, societyapi.MonthlyRevenue{Month: m, Amount: societyapi.Amount{Decimal: totals[m]}})
	}
	return out
}

func monthLabel(month string) string {
	for _, layout := range []string{"2006-01", "2006-1", "01/2006"} {
		if t, err := time.Parse(layout, month); err == nil {
			return t.Format("Jan 2006")
		}
	}
	return month
}

// Overview fetches every resource concurrently for the landing page. Any failure fails
// the whole page.
func (d *Dashboard) Overview(ctx context.Context, token string) (Overview, error) {
	var (
		loans     []societyapi.Loan
		receipts  []societyapi.Receipt
		penalties []societyapi.Penalty
		documents []societyapi.BankDocument
		members   []societyapi.Member
		summary   societyapi.RevenueSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { loans, err = d.loans(gctx, token); return err })
	g.Go(func() (err error) { receipts, err = d.receipts(gctx, token); return err })
	g.Go(func() (err error) { penalties, err = d.penalties(gctx, token); return err })
	g.Go(func() (err error) { documents, err = d.documents(gctx, token); return err })
	g.Go(func() (err error) { members, err = d.members(gctx, token); return err })
	g.Go(func() (err error) { summary, err = d.revenue(gctx, token); return err })
	if err := g.Wait(); err != nil {
		return Overview{}, fmt.Errorf("unable to load overview: %w", err)
	}

	o := Overview{
		Members:   len(members),
		Loans:     len(loans),
		Receipts:  len(receipts),
		Penalties: len(penalties),
	}

	now := d.now()
	outstanding := decimal.Zero
	for _, l := range loans {
		if !isSettled(l.Status) {
			o.ActiveLoans++
			outstanding = outstanding.Add(l.Balance.Decimal)
		}
		if loanIsOverdue(l, now) {
			o.OverdueLoans++
		}
	}

	collected := decimal.Zero
	for _, r := range receipts {
		if StatusBadge(r.Status).Tone != "danger" {
			collected = collected.Add(r.Amount.Decimal)
		}
	}

	penaltyTotal := decimal.Zero
	for _, p := range penalties {
		penaltyTotal = penaltyTotal.Add(p.PenaltyAmount.Decimal)
	}

	pending := Filter(documents, documentIsPending)
	o.PendingDocuments = len(pending)

	o.Outstanding = d.format.Currency(outstanding)
	o.Collected = d.format.Currency(collected)
	o.PenaltyTotal = d.format.Currency(penaltyTotal)
	o.TotalRevenue = d.format.Currency(totalRevenue(summary))

	recent := SortItems(receipts, Query{Desc: true}, receiptComparators, "date")
	if len(recent) > overviewListSize {
		recent = recent[:overviewListSize]
	}
	o.RecentReceipts = mapItems(recent, d.receiptRow)

	pending = SortItems(pending, Query{Desc: false}, documentComparators, "date")
	if len(pending) > overviewListSize {
		pending = pending[:overviewListSize]
	}
	o.PendingReview = mapItems(pending, d.documentRow)

	return o, nil
}
