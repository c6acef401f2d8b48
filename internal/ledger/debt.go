package ledger

import "github.com/aamamaludin23/electronkasir/internal/domain"

// ApplyDebtDelta returns the customer with delta added to the outstanding
// debt, clamped at zero. Overpayment beyond the debt is dropped, not carried
// as credit.
func ApplyDebtDelta(customer domain.Customer, delta int64) domain.Customer {
	next := customer.OutstandingDebt + delta
	if next < 0 {
		next = 0
	}
	customer.OutstandingDebt = next
	return customer
}
