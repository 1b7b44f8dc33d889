package mcptools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quaero-labs/corequaero/internal/model"
)

func TestLedgerChargeDeductsConfiguredCost(t *testing.T) {
	l := NewLedger(10, map[string]int{"deep_research": 5})
	cost, err := l.Charge("deep_research")
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
	assert.Equal(t, 5, l.Balance())
}

func TestLedgerChargeDefaultsToOne(t *testing.T) {
	l := NewLedger(10, nil)
	cost, err := l.Charge("fetch_url")
	require.NoError(t, err)
	assert.Equal(t, 1, cost)
}

func TestLedgerChargeFailsWhenExhausted(t *testing.T) {
	l := NewLedger(0, nil)
	_, err := l.Charge("fetch_url")
	require.Error(t, err)
	assert.Equal(t, model.KindCreditExhausted, model.KindOf(err))
}

func TestLedgerRefundRestoresBalance(t *testing.T) {
	l := NewLedger(10, nil)
	cost, _ := l.Charge("fetch_url")
	l.Refund(cost)
	assert.Equal(t, 10, l.Balance())
}
