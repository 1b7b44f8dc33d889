package mcptools

import (
	"sync"

	"github.com/quaero-labs/corequaero/internal/model"
)

// Ledger tracks a credit balance charged down per tool invocation. Cost
// values come from configuration (config.Config.Credits), never
// hard-coded, since spec.md §9's open question flags the cost table as
// ambiguous across source documents.
type Ledger struct {
	mu      sync.Mutex
	balance int
	costs   map[string]int
}

// NewLedger builds a Ledger with the given starting balance and per-tool
// cost table. Tools with no entry in costs default to a cost of 1.
func NewLedger(balance int, costs map[string]int) *Ledger {
	return &Ledger{balance: balance, costs: costs}
}

// CostOf returns the configured credit cost for toolName.
func (l *Ledger) CostOf(toolName string) int {
	if l.costs == nil {
		return 1
	}
	if c, ok := l.costs[toolName]; ok {
		return c
	}
	return 1
}

// Charge deducts the tool's cost before execution, per spec.md §4.15's
// "charges once pre-execution" rule. Returns KindCreditExhausted if the
// balance cannot cover it.
func (l *Ledger) Charge(toolName string) (int, error) {
	cost := l.CostOf(toolName)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance < cost {
		return 0, model.New(model.KindCreditExhausted, "insufficient credits for %s: need %d, have %d", toolName, cost, l.balance)
	}
	l.balance -= cost
	return cost, nil
}

// Refund returns cost credits to the balance, used only on hard failure —
// never on partial success, per spec.md §4.15.
func (l *Ledger) Refund(cost int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += cost
}

// Balance returns the current credit balance.
func (l *Ledger) Balance() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}
