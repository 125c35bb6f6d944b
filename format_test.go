package societyadmin

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"societyadmin/societyapi"
)

func TestFormatterCurrency(t *testing.T) {
	f := NewFormatter("$")

	tests := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"5", "$5.00"},
		{"1234.5", "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{"-1234.5", "-$1,234.50"},
		{"0.005", "$0.01"},
		{"-0.001", "$0.00"},
		{"90071992547409.93", "$90,071,992,547,409.93"},
		{"9223372036854775807.99", "$9,223,372,036,854,775,807.99"},
		{"12345678901234567890.125", "$12,345,678,901,234,567,890.13"},
		{"-12345678901234567890.5", "-$12,345,678,901,234,567,890.50"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Currency(decimal.RequireFromString(tt.in)))
		})
	}

	assert.Equal(t, "₦2,500.00", NewFormatter("₦").Amount(societyapi.NewAmount("2500")))
}

func TestFormatterDate(t *testing.T) {
	f := NewFormatter("$")

	assert.Equal(t, "N/A", f.Date(societyapi.Date{}))
	assert.Equal(t, "05 Mar 2024", f.Date(societyapi.Date{Time: time.Date(2024, 3, 5, 23, 0, 0, 0, time.UTC)}))
}

func TestFormatterPercent(t *testing.T) {
	f := NewFormatter("$")

	assert.Equal(t, "12.5%", f.Percent(societyapi.NewAmount("12.5")))
	assert.Equal(t, "3.33%", f.Percent(societyapi.NewAmount("3.3333")))
	assert.Equal(t, "0%", f.Percent(societyapi.Amount{}))
}

func TestStatusBadge(t *testing.T) {
	tests := []struct {
		status string
		want   Badge
	}{
		{"approved", Badge{Label: "Approved", Tone: "success"}},
		{"PAID", Badge{Label: "Paid", Tone: "success"}},
		{"pending", Badge{Label: "Pending", Tone: "warning"}},
		{"Under Review", Badge{Label: "Under Review", Tone: "warning"}},
		{"under-review", Badge{Label: "Under Review", Tone: "warning"}},
		{"rejected", Badge{Label: "Rejected", Tone: "danger"}},
		{"overdue", Badge{Label: "Overdue", Tone: "danger"}},
		{"waived", Badge{Label: "Waived", Tone: "secondary"}},
		{"", Badge{Label: "Unknown", Tone: "secondary"}},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusBadge(tt.status))
		})
	}
}

func TestHumanizeLabel(t *testing.T) {
	assert.Equal(t, "Loan Repayment", HumanizeLabel("loan_repayment"))
	assert.Equal(t, "Bank Transfer", HumanizeLabel("bank-transfer"))
	assert.Equal(t, "N/A", HumanizeLabel("  "))
}

func TestMaskAccountNumber(t *testing.T) {
	assert.Equal(t, "******7890", MaskAccountNumber("1234567890"))
	assert.Equal(t, "******7890", MaskAccountNumber("12345 67890"))
	assert.Equal(t, "1234", MaskAccountNumber("1234"))
	assert.Equal(t, "", MaskAccountNumber(""))
}

func TestResolveFileURL(t *testing.T) {
	assert.Equal(t, "https://files.example.com/uploads/a.png", ResolveFileURL("https://files.example.com/", "/uploads/a.png"))
	assert.Equal(t, "https://files.example.com/uploads/a.png", ResolveFileURL("https://files.example.com", `uploads\a.png`))
	assert.Equal(t, "https://cdn.example.com/a.png", ResolveFileURL("https://files.example.com", "https://cdn.example.com/a.png"))
	assert.Equal(t, "", ResolveFileURL("https://files.example.com", " "))
}
