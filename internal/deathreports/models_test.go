package deathreports

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBankDetailsObject(t *testing.T) {
	raw := json.RawMessage(`{"account_name":"Jane Doe","account_number":"12345678","bank_name":"First Bank","branch_code":"001"}`)

	details, err := ParseBankDetails(raw)
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", details.AccountName)
	assert.Equal(t, "12345678", details.AccountNumber)
	assert.Equal(t, "First Bank", details.BankName)
	assert.Equal(t, "001", details.BranchCode)
}

func TestParseBankDetailsEncodedString(t *testing.T) {
	// Older clients double-encode the object as a JSON string.
	raw := json.RawMessage(`"{\"account_name\":\"Jane Doe\",\"account_number\":\"12345678\",\"bank_name\":\"First Bank\"}"`)

	details, err := ParseBankDetails(raw)
	require.NoError(t, err)

	assert.Equal(t, "Jane Doe", details.AccountName)
	assert.Equal(t, "12345678", details.AccountNumber)
}

func TestParseBankDetailsRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ``},
		{"null", `null`},
		{"malformed object", `{"account_name":`},
		{"string with garbage", `"not json at all"`},
		{"missing account name", `{"account_number":"12345678","bank_name":"First Bank"}`},
		{"missing account number", `{"account_name":"Jane Doe","bank_name":"First Bank"}`},
		{"missing bank name", `{"account_name":"Jane Doe","account_number":"12345678"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBankDetails(json.RawMessage(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestApprovalCount(t *testing.T) {
	report := &DeathReport{Votes: []Vote{
		{Approved: true},
		{Approved: false},
		{Approved: true},
	}}

	assert.Equal(t, 2, report.ApprovalCount())
	assert.Equal(t, 0, (&DeathReport{}).ApprovalCount())
}
