package stream

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTransactionEvent(t *testing.T) {
	payload := []byte(`{"txn_id":"tx-1","account_id":"acc-1","amount":80.10,"txn_type":"purchase"}`)

	ev, err := DecodeTransactionEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "tx-1", ev.TxnID)
	assert.Equal(t, "acc-1", ev.AccountID)
	assert.Equal(t, "purchase", ev.TxnType)
	// The decimal must survive exactly, not as a binary float approximation.
	assert.True(t, ev.Amount.Equal(decimal.RequireFromString("80.10")), "amount = %s", ev.Amount)
}

func TestDecodeTransactionEventRejectsBadPayloads(t *testing.T) {
	testCases := []struct {
		name    string
		payload string
	}{
		{"not json", `{{{`},
		{"missing txn_id", `{"account_id":"acc-1","amount":1,"txn_type":"credit"}`},
		{"missing account_id", `{"txn_id":"tx-1","amount":1,"txn_type":"credit"}`},
		{"negative amount", `{"txn_id":"tx-1","account_id":"acc-1","amount":-5,"txn_type":"credit"}`},
		{"unknown txn_type", `{"txn_id":"tx-1","account_id":"acc-1","amount":5,"txn_type":"refund"}`},
		{"amount not a number", `{"txn_id":"tx-1","account_id":"acc-1","amount":"lots","txn_type":"credit"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeTransactionEvent([]byte(tc.payload))
			assert.Error(t, err)
		})
	}
}
