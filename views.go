package societyadmin

import (
	"strconv"
	"time"

	"societyadmin/societyapi"
)

type LoanRow struct {
	ID           string `json:"id"`
	Number       string `json:"number"`
	Member       string `json:"member"`
	MemberID     string `json:"memberId"`
	Type         string `json:"type"`
	Principal    string `json:"principal"`
	InterestRate string `json:"interestRate"`
	AmountPaid   string `json:"amountPaid"`
	Balance      string `json:"balance"`
	Term         string `json:"term"`
	Disbursed    string `json:"disbursed"`
	Due          string `json:"due"`
	Status       Badge  `json:"status"`
	Overdue      bool   `json:"overdue"`
}

type InstallmentRow struct {
	Due    string `json:"due"`
	Amount string `json:"amount"`
	Paid   string `json:"paid"`
	Status Badge  `json:"status"`
}

type LoanDetail struct {
	LoanRow
	Schedule []InstallmentRow `json:"schedule"`
}

type ReceiptRow struct {
	ID        string `json:"id"`
	Number    string `json:"number"`
	Member    string `json:"member"`
	MemberID  string `json:"memberId"`
	Amount    string `json:"amount"`
	Purpose   string `json:"purpose"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
	Date      string `json:"date"`
	Status    Badge  `json:"status"`
	ImageURL  string `json:"imageUrl,omitempty"`
}

type PenaltyRow struct {
	ID          string `json:"id"`
	Certificate string `json:"certificate"`
	Member      string `json:"member"`
	MemberID    string `json:"memberId"`
	Principal   string `json:"principal"`
	Rate        string `json:"rate"`
	Penalty     string `json:"penalty"`
	Reason      string `json:"reason"`
	Maturity    string `json:"maturity"`
	Withdrawn   string `json:"withdrawn"`
	Status      Badge  `json:"status"`
}

type DocumentRow struct {
	ID            string `json:"id"`
	Member        string `json:"member"`
	MemberID      string `json:"memberId"`
	Bank          string `json:"bank"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	Type          string `json:"type"`
	FileURL       string `json:"fileUrl,omitempty"`
	Uploaded      string `json:"uploaded"`
	Reviewed      string `json:"reviewed"`
	Note          string `json:"note,omitempty"`
	Status        Badge  `json:"status"`
	Pending       bool   `json:"pending"`
}

type MemberRow struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Joined string `json:"joined"`
	Status Badge  `json:"status"`
}

type MemberDetail struct {
	Member           MemberRow     `json:"member"`
	Loans            []LoanRow     `json:"loans"`
	Receipts         []ReceiptRow  `json:"receipts"`
	Documents        []DocumentRow `json:"documents"`
	TotalBorrowed    string        `json:"totalBorrowed"`
	TotalOutstanding string        `json:"totalOutstanding"`
	TotalPaid        string        `json:"totalPaid"`
}

type RevenueCard struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type MonthRow struct {
	Month  string `json:"month"`
	Amount string `json:"amount"`
	Share  int    `json:"share"`
}

type RevenueView struct {
	Cards   []RevenueCard `json:"cards"`
	Months  []MonthRow    `json:"months"`
	Derived bool          `json:"derived"`
}

type Overview struct {
	Members          int           `json:"members"`
	Loans            int           `json:"loans"`
	ActiveLoans      int           `json:"activeLoans"`
	OverdueLoans     int           `json:"overdueLoans"`
	Receipts         int           `json:"receipts"`
	Penalties        int           `json:"penalties"`
	PendingDocuments int           `json:"pendingDocuments"`
	Outstanding      string        `json:"outstanding"`
	Collected        string        `json:"collected"`
	PenaltyTotal     string        `json:"penaltyTotal"`
	TotalRevenue     string        `json:"totalRevenue"`
	RecentReceipts   []ReceiptRow  `json:"recentReceipts"`
	PendingReview    []DocumentRow `json:"pendingReview"`
}

func mapItems[T, R any](items []T, f func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, f(item))
	}
	return out
}

func mapPage[T, R any](p Page[T], f func(T) R) Page[R] {
	return Page[R]{
		Items:      mapItems(p.Items, f),
		Query:      p.Query,
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		From:       p.From,
		To:         p.To,
		HasPrev:    p.HasPrev,
		HasNext:    p.HasNext,
	}
}

func isSettled(status string) bool {
	switch NormalizeStatus(status) {
	case "paid", "completed", "settled", "cleared", "closed":
		return true
	}
	return false
}

func loanIsOverdue(l societyapi.Loan, now time.Time) bool {
	if NormalizeStatus(l.Status) == "overdue" {
		return true
	}
	if l.DueDate.IsZero() || isSettled(l.Status) || !l.Balance.IsPositive() {
		return false
	}
	return l.DueDate.Before(now)
}

func (d *Dashboard) loanRow(l societyapi.Loan) LoanRow {
	term := missingText
	if l.TermMonths > 0 {
		term = formatMonths(int(l.TermMonths))
	}

	return LoanRow{
		ID:           l.Key(),
		Number:       orMissing(l.LoanNumber),
		Member:       orMissing(l.DisplayMember()),
		MemberID:     l.MemberKey(),
		Type:         HumanizeLabel(l.LoanType),
		Principal:    d.format.Amount(l.Principal),
		InterestRate: d.format.Percent(l.InterestRate),
		AmountPaid:   d.format.Amount(l.AmountPaid),
		Balance:      d.format.Amount(l.Balance),
		Term:         term,
		Disbursed:    d.format.Date(l.DisbursedAt),
		Due:          d.format.Date(l.DueDate),
		Status:       StatusBadge(l.Status),
		Overdue:      loanIsOverdue(l, d.now()),
	}
}

func (d *Dashboard) loanDetail(l societyapi.Loan) LoanDetail {
	return LoanDetail{
		LoanRow: d.loanRow(l),
		Schedule: mapItems(l.Schedule, func(i societyapi.Installment) InstallmentRow {
			return InstallmentRow{
				Due:    d.format.Date(i.DueDate),
				Amount: d.format.Amount(i.Amount),
				Paid:   d.format.Date(i.PaidAt),
				Status: StatusBadge(i.Status),
			}
		}),
	}
}

func (d *Dashboard) receiptRow(r societyapi.Receipt) ReceiptRow {
	return ReceiptRow{
		ID:        r.Key(),
		Number:    orMissing(r.ReceiptNumber),
		Member:    orMissing(r.DisplayMember()),
		MemberID:  r.MemberKey(),
		Amount:    d.format.Amount(r.Amount),
		Purpose:   HumanizeLabel(r.Purpose),
		Method:    HumanizeLabel(r.PaymentMethod),
		Reference: orMissing(r.Reference),
		Date:      d.format.Date(r.When()),
		Status:    StatusBadge(r.Status),
		ImageURL:  ResolveFileURL(d.imageBaseURL, r.ImagePath),
	}
}

func (d *Dashboard) penaltyRow(p societyapi.Penalty) PenaltyRow {
	return PenaltyRow{
		ID:          p.Key(),
		Certificate: orMissing(p.CertificateNumber),
		Member:      orMissing(p.DisplayMember()),
		MemberID:    p.MemberKey(),
		Principal:   d.format.Amount(p.Principal),
		Rate:        d.format.Percent(p.PenaltyRate),
		Penalty:     d.format.Amount(p.PenaltyAmount),
		Reason:      orMissing(p.Reason),
		Maturity:    d.format.Date(p.MaturityDate),
		Withdrawn:   d.format.Date(penaltyDate(p)),
		Status:      StatusBadge(p.Status),
	}
}

func penaltyDate(p societyapi.Penalty) societyapi.Date {
	if !p.WithdrawnAt.IsZero() {
		return p.WithdrawnAt
	}
	return p.CreatedAt
}

func (d *Dashboard) documentRow(doc societyapi.BankDocument) DocumentRow {
	return DocumentRow{
		ID:            doc.Key(),
		Member:        orMissing(doc.DisplayMember()),
		MemberID:      doc.MemberKey(),
		Bank:          orMissing(doc.BankName),
		AccountName:   orMissing(doc.AccountName),
		AccountNumber: MaskAccountNumber(doc.AccountNumber),
		Type:          HumanizeLabel(doc.DocumentType),
		FileURL:       ResolveFileURL(d.imageBaseURL, doc.FilePath),
		Uploaded:      d.format.Date(doc.When()),
		Reviewed:      d.format.Date(doc.ReviewedAt),
		Note:          doc.ReviewNote,
		Status:        StatusBadge(doc.Status),
		Pending:       documentIsPending(doc),
	}
}

func documentIsPending(doc societyapi.BankDocument) bool {
	switch NormalizeStatus(doc.Status) {
	case "", "pending", "submitted", "under_review":
		return true
	}
	return false
}

func (d *Dashboard) memberRow(m societyapi.Member) MemberRow {
	return MemberRow{
		ID:     m.Key(),
		Number: orMissing(m.MemberNumber),
		Name:   orMissing(m.FullName()),
		Email:  orMissing(m.Email),
		Phone:  orMissing(m.Phone),
		Joined: d.format.Date(m.Joined()),
		Status: StatusBadge(m.Status),
	}
}

func formatMonths(n int) string {
	if n == 1 {
		return "1 month"
	}
	return strconv.Itoa(n) + " months"
}
