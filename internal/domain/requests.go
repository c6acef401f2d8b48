package domain

type CommitRequest struct {
	Lines         []CartLineRequest `json:"lines"`
	Discount      int64             `json:"discount"`
	OtherFees     int64             `json:"other_fees"`
	PaymentMethod string            `json:"payment_method"`
	CashTendered  int64             `json:"cash_tendered"`
	Bank          string            `json:"bank,omitempty"`
	CustomerID    string            `json:"customer_id,omitempty"`
	CashierName   string            `json:"cashier_name,omitempty"`
}

type HoldRequest struct {
	Lines       []CartLineRequest `json:"lines"`
	Discount    int64             `json:"discount"`
	OtherFees   int64             `json:"other_fees"`
	CustomerID  string            `json:"customer_id,omitempty"`
	CashierName string            `json:"cashier_name,omitempty"`
}

type EditRequest struct {
	Lines []CartLineRequest `json:"lines"`
	// NewTotal overrides the repriced total when set.
	NewTotal      *int64 `json:"new_total,omitempty"`
	PaymentAmount int64  `json:"payment_amount"`
}

type StartShiftRequest struct {
	CashierName    string `json:"cashier_name"`
	OpeningBalance int64  `json:"opening_balance"`
}

type ExpenseRequest struct {
	Amount      int64  `json:"amount"`
	CategoryID  string `json:"category_id,omitempty"`
	Description string `json:"description"`
	TakenBy     string `json:"taken_by,omitempty"`
}

type PayDebtRequest struct {
	CustomerID string `json:"customer_id"`
	Amount     int64  `json:"amount"`
}

type TierQuantity struct {
	TierName string `json:"tier_name"`
	Quantity int    `json:"quantity"`
}

type StockInRequest struct {
	ItemID string         `json:"item_id"`
	Tiers  []TierQuantity `json:"tiers"`
}

type StockOpnameRequest struct {
	ItemID string         `json:"item_id"`
	Counts []TierQuantity `json:"counts"`
}
