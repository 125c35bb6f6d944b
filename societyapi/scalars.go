package societyapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ID accepts both string and numeric identifiers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("unable to decode id %s: %w", b, err)
	}
	*id = ID(n.String())

	return nil
}

func (id ID) String() string {
	return string(id)
}

// Amount is a money value. The backend sends numbers, numeric strings, empty strings and
// nulls; the last two decode to zero.
type Amount struct {
	decimal.Decimal
}

func NewAmount(s string) Amount {
	return Amount{decimal.RequireFromString(s)}
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	s := strings.Trim(string(b), `"`)
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "null" {
		a.Decimal = decimal.Zero
		return nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("unable to decode amount %s: %w", b, err)
	}
	a.Decimal = d

	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.Decimal.String())), nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Date accepts RFC3339 timestamps, timestamps without a zone and plain dates. Empty
// strings and nulls decode to the zero time.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(strings.Trim(string(bytes.TrimSpace(b)), `"`))
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}

	return fmt.Errorf("unable to decode date %q", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(d.Time.Format(time.RFC3339Nano))), nil
}
