package societyadmin

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"societyadmin/societyapi"
)

const (
	dateLayout  = "02 Jan 2006"
	missingText = "N/A"
)

// Formatter renders money and dates for display. Grouping follows English conventions;
// only the currency symbol is configurable.
type Formatter struct {
	symbol  string
	printer *message.Printer
}

func NewFormatter(symbol string) Formatter {
	return Formatter{
		symbol:  symbol,
		printer: message.NewPrinter(language.English),
	}
}

func (f Formatter) Currency(d decimal.Decimal) string {
	sign := ""
	d = d.Round(2)
	if d.IsNegative() {
		sign = "-"
		d = d.Neg()
	}

	whole, cents, _ := strings.Cut(d.StringFixed(2), ".")
	return sign + f.symbol + f.groupThousands(whole) + "." + cents
}

// groupThousands inserts separators into a string of digits. Values past int64 are
// grouped by hand.
func (f Formatter) groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return f.printer.Sprintf("%d", n)
	}

	var b strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (f Formatter) Amount(a societyapi.Amount) string {
	return f.Currency(a.Decimal)
}

func (f Formatter) Date(d societyapi.Date) string {
	if d.IsZero() {
		return missingText
	}
	return d.Format(dateLayout)
}

// Percent renders a rate that is already expressed in percent.
func (f Formatter) Percent(a societyapi.Amount) string {
	return a.Decimal.Round(2).String() + "%"
}

// Badge is a status rendered as a coloured pill.
type Badge struct {
	Label string `json:"label"`
	Tone  string `json:"tone"`
}

var statusTones = map[string]string{
	"active":       "success",
	"approved":     "success",
	"completed":    "success",
	"paid":         "success",
	"verified":     "success",
	"settled":      "success",
	"cleared":      "success",
	"pending":      "warning",
	"processing":   "warning",
	"under_review": "warning",
	"submitted":    "warning",
	"partial":      "warning",
	"rejected":     "danger",
	"overdue":      "danger",
	"defaulted":    "danger",
	"failed":       "danger",
	"cancelled":    "danger",
	"canceled":     "danger",
	"suspended":    "danger",
	"unpaid":       "danger",
}

func StatusBadge(status string) Badge {
	normalized := NormalizeStatus(status)
	if normalized == "" {
		return Badge{Label: "Unknown", Tone: "secondary"}
	}

	tone, ok := statusTones[normalized]
	if !ok {
		tone = "secondary"
	}

	return Badge{Label: HumanizeLabel(normalized), Tone: tone}
}

// NormalizeStatus lowercases and joins words with underscores so "Under Review",
// "under-review" and "UNDER_REVIEW" compare equal.
func NormalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}

// HumanizeLabel turns "loan_repayment" into "Loan Repayment".
func HumanizeLabel(s string) string {
	s = strings.TrimSpace(strings.NewReplacer("_", " ", "-", " ").Replace(s))
	if s == "" {
		return missingText
	}
	return cases.Title(language.English).String(s)
}

// MaskAccountNumber keeps the last four digits.
func MaskAccountNumber(account string) string {
	account = strings.ReplaceAll(strings.TrimSpace(account), " ", "")
	if len(account) <= 4 {
		return account
	}
	return strings.Repeat("*", len(account)-4) + account[len(account)-4:]
}

// ResolveFileURL joins an uploaded file path onto the image base URL. Absolute URLs are
// returned unchanged.
func ResolveFileURL(base, path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}

	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(strings.ReplaceAll(path, "\\", "/"), "/")
}

func orMissing(s string) string {
	if strings.TrimSpace(s) == "" {
		return missingText
	}
	return s
}
