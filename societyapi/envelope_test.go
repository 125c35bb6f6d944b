package societyapi_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"societyadmin/societyapi"
)

func TestExtractListShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"nested twice under key", `{"success":true,"data":{"data":{"loans":[{"id":1},{"id":2}]}}}`, 2},
		{"under data key", `{"success":true,"data":{"loans":[{"id":1}]}}`, 1},
		{"data.data is the array", `{"data":{"data":[{"id":1},{"id":2},{"id":3}]}}`, 3},
		{"data is the array", `{"success":true,"data":[{"id":1}]}`, 1},
		{"key at root", `{"loans":[{"id":1},{"id":2}]}`, 2},
		{"root array", `[{"id":1}]`, 1},
		{"missing", `{"success":true,"data":{"total":0}}`, 0},
		{"null data", `{"success":true,"data":null}`, 0},
		{"empty body", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := societyapi.ExtractList([]byte(tt.body), "loans")
			require.NoError(t, err)

			var items []json.RawMessage
			require.NoError(t, json.Unmarshal(raw, &items))
			assert.Len(t, items, tt.want)
		})
	}
}

func TestExtractListPrefersKeyOverSiblingArrays(t *testing.T) {
	body := `{"data":{"warnings":[],"penalties":[{"id":"p1"}]}}`

	penalties, err := societyapi.DecodeList[societyapi.Penalty]([]byte(body), "penalties")
	require.NoError(t, err)
	require.Len(t, penalties, 1)
	assert.Equal(t, "p1", penalties[0].Key())
}

func TestExtractListAliases(t *testing.T) {
	body := `{"data":{"cdPenalties":[{"id":"p1"},{"id":"p2"}]}}`

	penalties, err := societyapi.DecodeList[societyapi.Penalty]([]byte(body), "penalties", "cdPenalties")
	require.NoError(t, err)
	assert.Len(t, penalties, 2)
}

func TestExtractListInvalidJson(t *testing.T) {
	_, err := societyapi.ExtractList([]byte(`{"data": [`), "loans")
	assert.ErrorIs(t, err, societyapi.ErrUnableToDecodeResponse)
}

func TestExtractObjectShapes(t *testing.T) {
	bodies := []string{
		`{"success":true,"data":{"data":{"summary":{"totalRevenue":"10.5"}}}}`,
		`{"success":true,"data":{"summary":{"totalRevenue":10.5}}}`,
		`{"summary":{"totalRevenue":"10.50"}}`,
		`{"success":true,"data":{"totalRevenue":"10.5"}}`,
		`{"totalRevenue":10.5}`,
	}

	for _, body := range bodies {
		summary, found, err := societyapi.DecodeObject[societyapi.RevenueSummary]([]byte(body), "summary")
		require.NoError(t, err, body)
		assert.True(t, found, body)
		assert.Equal(t, "10.5", summary.TotalRevenue.String(), body)
	}
}

func TestDecodeListKeepsLenientFields(t *testing.T) {
	body := `{"data":[{
		"_id": "r1",
		"amount": "1,250.75",
		"paidAt": "2024-03-05",
		"member": {"_id": "m1", "firstName": "Ada", "lastName": "Obi"}
	}, {
		"id": 7,
		"amount": null,
		"createdAt": "2024-03-06T10:00:00Z",
		"member": "m2",
		"memberName": "Chidi Eze"
	}]}`

	receipts, err := societyapi.DecodeList[societyapi.Receipt]([]byte(body), "receipts")
	require.NoError(t, err)
	require.Len(t, receipts, 2)

	assert.Equal(t, "r1", receipts[0].Key())
	assert.Equal(t, "1250.75", receipts[0].Amount.String())
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), receipts[0].When().Time)
	assert.Equal(t, "m1", receipts[0].MemberKey())
	assert.Equal(t, "Ada Obi", receipts[0].DisplayMember())

	assert.Equal(t, "7", receipts[1].Key())
	assert.True(t, receipts[1].Amount.IsZero())
	assert.Equal(t, 6, receipts[1].When().Day())
	assert.Equal(t, "m2", receipts[1].MemberKey())
	assert.Equal(t, "Chidi Eze", receipts[1].DisplayMember())
}

func TestDateRejectsGarbage(t *testing.T) {
	var d societyapi.Date
	assert.Error(t, json.Unmarshal([]byte(`"next tuesday"`), &d))
	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.True(t, d.IsZero())
}

func TestAmountRoundTrip(t *testing.T) {
	a := societyapi.NewAmount("12.345")
	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Equal(t, `"12.345"`, string(b))

	var back societyapi.Amount
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, a.Equal(back.Decimal))
}
