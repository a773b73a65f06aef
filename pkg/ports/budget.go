package ports

import "context"

// BudgetLedger tracks per-tenant daily LLM spend. Day rollover is the
// implementation's concern (keyed by UTC date); callers only see totals.
type BudgetLedger interface {
	// Charge adds cost units to today's total for the tenant and returns
	// the new cumulative total.
	Charge(ctx context.Context, tenantID string, units int64) (int64, error)

	// Spent returns today's cumulative total for the tenant.
	Spent(ctx context.Context, tenantID string) (int64, error)
}
