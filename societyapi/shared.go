package societyapi

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Count is an integer that may arrive as a number or a numeric string.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	var a Amount
	if err := a.UnmarshalJSON(b); err != nil {
		return err
	}
	*c = Count(a.IntPart())
	return nil
}

// MemberRef is the member embedded in other records. Some endpoints populate it, others
// send the bare member id in its place.
type MemberRef struct {
	ID           ID     `json:"id"`
	ObjectID     ID     `json:"_id"`
	MemberNumber string `json:"memberNumber"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	FullName     string `json:"fullName"`
}

func (m *MemberRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] != '{' {
		var id ID
		if err := id.UnmarshalJSON(b); err != nil {
			return err
		}
		*m = MemberRef{ID: id}
		return nil
	}

	type plain MemberRef
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = MemberRef(p)

	return nil
}

func (m MemberRef) Key() string {
	return firstNonEmpty(string(m.ID), string(m.ObjectID))
}

func (m MemberRef) Name() string {
	if m.FullName != "" {
		return m.FullName
	}
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// MemberLink is how loans, receipts, penalties and documents point at their member.
type MemberLink struct {
	MemberID   ID         `json:"memberId"`
	MemberName string     `json:"memberName"`
	Member     *MemberRef `json:"member,omitempty"`
}

func (l MemberLink) MemberKey() string {
	if l.MemberID != "" {
		return string(l.MemberID)
	}
	if l.Member != nil {
		return l.Member.Key()
	}
	return ""
}

func (l MemberLink) DisplayMember() string {
	if l.MemberName != "" {
		return l.MemberName
	}
	if l.Member != nil {
		return l.Member.Name()
	}
	return ""
}

type Installment struct {
	DueDate Date   `json:"dueDate"`
	Amount  Amount `json:"amount"`
	Status  string `json:"status"`
	PaidAt  Date   `json:"paidAt"`
}

type Loan struct {
	ID       ID `json:"id"`
	ObjectID ID `json:"_id"`
	MemberLink
	LoanNumber   string        `json:"loanNumber"`
	LoanType     string        `json:"loanType"`
	Principal    Amount        `json:"principal"`
	InterestRate Amount        `json:"interestRate"`
	TermMonths   Count         `json:"termMonths"`
	AmountPaid   Amount        `json:"amountPaid"`
	Balance      Amount        `json:"balance"`
	Status       string        `json:"status"`
	DisbursedAt  Date          `json:"disbursedAt"`
	DueDate      Date          `json:"dueDate"`
	CreatedAt    Date          `json:"createdAt"`
	Schedule     []Installment `json:"schedule"`
}

func (l Loan) Key() string {
	return firstNonEmpty(string(l.ID), string(l.ObjectID))
}

type Receipt struct {
	ID       ID `json:"id"`
	ObjectID ID `json:"_id"`
	MemberLink
	ReceiptNumber string `json:"receiptNumber"`
	Amount        Amount `json:"amount"`
	Purpose       string `json:"purpose"`
	PaymentMethod string `json:"paymentMethod"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	PaidAt        Date   `json:"paidAt"`
	CreatedAt     Date   `json:"createdAt"`
	ImagePath     string `json:"imagePath"`
}

func (r Receipt) Key() string {
	return firstNonEmpty(string(r.ID), string(r.ObjectID))
}

// When is the payment date, falling back to the record creation date.
func (r Receipt) When() Date {
	if !r.PaidAt.IsZero() {
		return r.PaidAt
	}
	return r.CreatedAt
}

// Penalty is a penalty assessed on a certificate of deposit, usually for an early
// withdrawal.
type Penalty struct {
	ID       ID `json:"id"`
	ObjectID ID `json:"_id"`
	MemberLink
	CertificateNumber string `json:"certificateNumber"`
	Principal         Amount `json:"principal"`
	PenaltyRate       Amount `json:"penaltyRate"`
	PenaltyAmount     Amount `json:"penaltyAmount"`
	Reason            string `json:"reason"`
	Status            string `json:"status"`
	MaturityDate      Date   `json:"maturityDate"`
	WithdrawnAt       Date   `json:"withdrawnAt"`
	CreatedAt         Date   `json:"createdAt"`
}

func (p Penalty) Key() string {
	return firstNonEmpty(string(p.ID), string(p.ObjectID))
}

type BankDocument struct {
	ID       ID `json:"id"`
	ObjectID ID `json:"_id"`
	MemberLink
	BankName      string `json:"bankName"`
	AccountName   string `json:"accountName"`
	AccountNumber string `json:"accountNumber"`
	DocumentType  string `json:"documentType"`
	FilePath      string `json:"filePath"`
	Status        string `json:"status"`
	ReviewNote    string `json:"reviewNote"`
	UploadedAt    Date   `json:"uploadedAt"`
	ReviewedAt    Date   `json:"reviewedAt"`
	CreatedAt     Date   `json:"createdAt"`
}

func (d BankDocument) Key() string {
	return firstNonEmpty(string(d.ID), string(d.ObjectID))
}

func (d BankDocument) When() Date {
	if !d.UploadedAt.IsZero() {
		return d.UploadedAt
	}
	return d.CreatedAt
}

type Member struct {
	ID           ID     `json:"id"`
	ObjectID     ID     `json:"_id"`
	MemberNumber string `json:"memberNumber"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Status       string `json:"status"`
	JoinedAt     Date   `json:"joinedAt"`
	CreatedAt    Date   `json:"createdAt"`
}

func (m Member) Key() string {
	return firstNonEmpty(string(m.ID), string(m.ObjectID))
}

func (m Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m Member) Joined() Date {
	if !m.JoinedAt.IsZero() {
		return m.JoinedAt
	}
	return m.CreatedAt
}

type MonthlyRevenue struct {
	Month  string `json:"month"`
	Amount Amount `json:"amount"`
}

type RevenueSummary struct {
	TotalRevenue     Amount           `json:"totalRevenue"`
	LoanInterest     Amount           `json:"loanInterest"`
	PenaltyIncome    Amount           `json:"penaltyIncome"`
	ReceiptIncome    Amount           `json:"receiptIncome"`
	FeeIncome        Amount           `json:"feeIncome"`
	OutstandingLoans Amount           `json:"outstandingLoans"`
	ByMonth          []MonthlyRevenue `json:"byMonth"`
}

type User struct {
	ID       ID     `json:"id"`
	ObjectID ID     `json:"_id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type LoginResult struct {
	Token string
	User  User
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
