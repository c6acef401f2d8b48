package ledger

import "github.com/aamamaludin23/electronkasir/internal/domain"

// Balance is the cash position of a shift.
type Balance struct {
	ShiftID        string `json:"shift_id"`
	OpeningBalance int64  `json:"opening_balance"`
	CashFromSales  int64  `json:"cash_from_sales"`
	CashFromDebt   int64  `json:"cash_from_debt"`
	TotalExpenses  int64  `json:"total_expenses"`
	CurrentBalance int64  `json:"current_balance"`
}

// TotalCashIn is cash collected from sales and debt repayments together.
func (b Balance) TotalCashIn() int64 {
	return b.CashFromSales + b.CashFromDebt
}

// ComputeBalance reconciles the cash drawer for shift. Only transactions and
// payments tagged with the shift's id count. Cash sales contribute the cash
// actually kept, amountPaid minus change; pending transactions are ignored.
func ComputeBalance(shift domain.Shift, transactions []domain.Transaction, payments []domain.DebtPayment) Balance {
	balance := Balance{
		ShiftID:        shift.ID,
		OpeningBalance: shift.OpeningBalance,
	}

	for _, tx := range transactions {
		if tx.ShiftID != shift.ID || tx.Status == domain.TxStatusPending || tx.PaymentMethod != domain.PaymentCash {
			continue
		}
		balance.CashFromSales += tx.AmountPaid - tx.Change
	}
	for _, payment := range payments {
		if payment.ShiftID != shift.ID {
			continue
		}
		balance.CashFromDebt += payment.Amount
	}
	for _, expense := range shift.Expenses {
		balance.TotalExpenses += expense.Amount
	}

	balance.CurrentBalance = shift.OpeningBalance + balance.TotalCashIn() - balance.TotalExpenses
	return balance
}
