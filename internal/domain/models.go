package domain

import "time"

// WalkInCustomerID identifies the anonymous walk-in customer. Credit sales
// are never allowed against it.
const WalkInCustomerID = "walk-in"

type WholesaleLevel struct {
	MinQty int   `json:"min_qty"`
	Price  int64 `json:"price"`
}

type PriceTier struct {
	UnitName         string           `json:"unit_name"`
	Price            int64            `json:"price"`
	Stock            int              `json:"stock"`
	Barcode          string           `json:"barcode,omitempty"`
	ConversionFactor int              `json:"conversion_factor"`
	WholesaleLevels  []WholesaleLevel `json:"wholesale_levels,omitempty"`
}

type Item struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Code       string      `json:"code,omitempty"`
	Category   string      `json:"category,omitempty"`
	Brand      string      `json:"brand,omitempty"`
	SaleStatus string      `json:"sale_status"`
	CostPrice  int64       `json:"cost_price"`
	CostUnit   string      `json:"cost_unit"`
	Tiers      []PriceTier `json:"tiers"`
}

// Tier returns the tier with the given unit name.
func (i Item) Tier(unitName string) (PriceTier, bool) {
	for _, tier := range i.Tiers {
		if tier.UnitName == unitName {
			return tier, true
		}
	}
	return PriceTier{}, false
}

// CartLine is a transient, unpersisted cart entry.
type CartLine struct {
	Item     Item      `json:"item"`
	Tier     PriceTier `json:"tier"`
	Quantity int       `json:"quantity"`
}

// CartLineRequest references a cart line by ids as sent by clients.
type CartLineRequest struct {
	ItemID   string `json:"item_id"`
	TierName string `json:"tier_name"`
	Quantity int    `json:"quantity"`
}

// TransactionItem keeps a value copy of the tier as it was at sale time.
type TransactionItem struct {
	ItemID    string    `json:"item_id"`
	Name      string    `json:"name"`
	Quantity  int       `json:"quantity"`
	PriceTier PriceTier `json:"price_tier"`
}

type Transaction struct {
	ID            string            `json:"id"`
	Items         []TransactionItem `json:"items"`
	Total         int64             `json:"total"`
	PaymentMethod string            `json:"payment_method"`
	AmountPaid    int64             `json:"amount_paid"`
	Change        int64             `json:"change"`
	Discount      int64             `json:"discount"`
	OtherFees     int64             `json:"other_fees"`
	Bank          string            `json:"bank,omitempty"`
	CustomerID    string            `json:"customer_id,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	ShiftID       string            `json:"shift_id,omitempty"`
	CashierName   string            `json:"cashier_name,omitempty"`
	Status        string            `json:"status"`
}

type Customer struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
	Email           string `json:"email,omitempty"`
	OutstandingDebt int64  `json:"outstanding_debt"`
}

type DebtPayment struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	Amount     int64     `json:"amount"`
	Timestamp  time.Time `json:"timestamp"`
	ShiftID    string    `json:"shift_id,omitempty"`
}

type Expense struct {
	ID          string    `json:"id"`
	Amount      int64     `json:"amount"`
	CategoryID  string    `json:"category_id,omitempty"`
	Description string    `json:"description"`
	TakenBy     string    `json:"taken_by,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type Shift struct {
	ID             string     `json:"id"`
	CashierName    string     `json:"cashier_name"`
	OpeningBalance int64      `json:"opening_balance"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Status         string     `json:"status"`
	Expenses       []Expense  `json:"expenses"`
	CashSales      int64      `json:"cash_sales"`
	FinalBalance   int64      `json:"final_balance"`
}

type Settings struct {
	TaxRatePercent    float64 `json:"tax_rate_percent"`
	LowStockThreshold int     `json:"low_stock_threshold"`
	StoreName         string  `json:"store_name"`
	Address           string  `json:"address,omitempty"`
	Phone             string  `json:"phone,omitempty"`
	ReceiptNotes      string  `json:"receipt_notes,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type CashierUser struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

func (i Item) RecordID() string { return i.ID }
func (c Customer) RecordID() string { return c.ID }
func (t Transaction) RecordID() string { return t.ID }
func (p DebtPayment) RecordID() string { return p.ID }
func (s Shift) RecordID() string { return s.ID }
func (u UserAccount) RecordID() string { return u.Username }
func (a AuditLog) RecordID() string { return a.ID }

const (
	PaymentCash    = "cash"
	PaymentDebit   = "debit"
	PaymentEMoney  = "emoney"
	PaymentCredit  = "credit"
	PaymentPending = "pending"
)

const (
	TxStatusCompleted = "completed"
	TxStatusPending   = "pending"
)

const (
	ShiftStatusActive = "active"
	ShiftStatusClosed = "closed"
)

const (
	SaleStatusOnSale       = "on_sale"
	SaleStatusDiscontinued = "discontinued"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)
