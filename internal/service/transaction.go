package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/events"
	"github.com/aamamaludin23/electronkasir/internal/ledger"
	"github.com/aamamaludin23/electronkasir/internal/pricing"
	"github.com/aamamaludin23/electronkasir/internal/receipt"
	"github.com/aamamaludin23/electronkasir/internal/store"
	"github.com/aamamaludin23/electronkasir/internal/xid"
)

type CommitResult struct {
	Transaction domain.Transaction    `json:"transaction"`
	Quote       pricing.Quote         `json:"quote"`
	Warnings    []ledger.StockWarning `json:"warnings"`
}

type ResumeResult struct {
	TransactionID string            `json:"transaction_id"`
	Lines         []domain.CartLine `json:"lines"`
	Discount      int64             `json:"discount"`
	OtherFees     int64             `json:"other_fees"`
	CustomerID    string            `json:"customer_id"`
	Quote         pricing.Quote     `json:"quote"`
}

type EditResult struct {
	Transaction domain.Transaction    `json:"transaction"`
	Deltas      []ledger.StockDelta   `json:"deltas"`
	Customer    *domain.Customer      `json:"customer,omitempty"`
	Payment     *domain.DebtPayment   `json:"payment,omitempty"`
	Warnings    []ledger.StockWarning `json:"warnings"`
}

// Quote prices a cart against live item data without touching any state.
func (s *Service) Quote(ctx context.Context, lines []domain.CartLineRequest, discount int64, otherFees int64) (pricing.Quote, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return pricing.Quote{}, err
	}
	items, err := s.store.Items().List(ctx)
	if err != nil {
		return pricing.Quote{}, err
	}
	cart, err := resolveLines(items, lines, true)
	if err != nil {
		return pricing.Quote{}, err
	}
	return quoteCart(cart, discount, otherFees, settings.TaxRatePercent)
}

// Commit settles a cart as a completed sale. Stock deductions, the credit
// debt increase and the transaction record are persisted together.
func (s *Service) Commit(ctx context.Context, req domain.CommitRequest) (CommitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return CommitResult{}, err
	}
	shift, err := s.activeShift(ctx)
	if err != nil {
		return CommitResult{}, err
	}

	items, err := s.store.Items().List(ctx)
	if err != nil {
		return CommitResult{}, err
	}
	lines, err := resolveLines(items, req.Lines, true)
	if err != nil {
		return CommitResult{}, err
	}
	quote, err := quoteCart(lines, req.Discount, req.OtherFees, settings.TaxRatePercent)
	if err != nil {
		return CommitResult{}, err
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = domain.WalkInCustomerID
	}

	tx := domain.Transaction{
		ID:            xid.New("tx"),
		Items:         snapshotItems(lines),
		Total:         quote.Total,
		PaymentMethod: method,
		Discount:      quote.Discount,
		OtherFees:     quote.OtherFees,
		CustomerID:    customerID,
		Timestamp:     s.now(),
		ShiftID:       shift.ID,
		CashierName:   cashierName(ctx, req.CashierName),
		Status:        domain.TxStatusCompleted,
	}

	var patch store.Patch
	switch method {
	case domain.PaymentCash:
		if req.CashTendered < quote.Total {
			return CommitResult{}, ErrInsufficientPayment
		}
		tx.AmountPaid = req.CashTendered
		tx.Change = req.CashTendered - quote.Total
	case domain.PaymentDebit:
		bank := strings.TrimSpace(req.Bank)
		if bank == "" {
			return CommitResult{}, ErrBankRequired
		}
		tx.Bank = bank
		tx.AmountPaid = quote.Total
	case domain.PaymentEMoney:
		tx.AmountPaid = quote.Total
	case domain.PaymentCredit:
		if customerID == domain.WalkInCustomerID {
			return CommitResult{}, ErrInvalidCreditCustomer
		}
		customer, err := s.store.Customers().Get(ctx, customerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return CommitResult{}, ErrInvalidCreditCustomer
			}
			return CommitResult{}, err
		}
		patch.Customers = append(patch.Customers, ledger.ApplyDebtDelta(customer, quote.Total))
	default:
		return CommitResult{}, ErrInvalidPaymentMethod
	}

	deltas := ledger.SaleDeltas(lines)
	updated, changed, err := ledger.BulkApply(items, deltas)
	if err != nil {
		return CommitResult{}, err
	}
	patch.Items = changed
	patch.Transactions = []domain.Transaction{tx}

	if err := s.persist(ctx, "commit", patch); err != nil {
		return CommitResult{}, err
	}

	warnings := ledger.StockWarnings(updated, deltas)
	s.rememberLast(ctx, tx)
	s.metrics.TransactionCommitted(method, tx.Total)
	s.events.Emit(events.TypeTransactionCommitted, tx)
	s.emitStockWarnings(warnings)
	s.logAudit(ctx, "transaction.commit", "transaction", tx.ID, fmt.Sprintf("method=%s total=%d", method, tx.Total))

	return CommitResult{Transaction: tx, Quote: quote, Warnings: warnings}, nil
}

// Hold parks a cart as a pending transaction. Stock and debt are untouched.
func (s *Service) Hold(ctx context.Context, req domain.HoldRequest) (domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	shift, err := s.activeShift(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	items, err := s.store.Items().List(ctx)
	if err != nil {
		return domain.Transaction{}, err
	}
	lines, err := resolveLines(items, req.Lines, true)
	if err != nil {
		return domain.Transaction{}, err
	}
	quote, err := quoteCart(lines, req.Discount, req.OtherFees, settings.TaxRatePercent)
	if err != nil {
		return domain.Transaction{}, err
	}

	customerID := strings.TrimSpace(req.CustomerID)
	if customerID == "" {
		customerID = domain.WalkInCustomerID
	}

	tx := domain.Transaction{
		ID:            xid.New("tx"),
		Items:         snapshotItems(lines),
		Total:         quote.Total,
		PaymentMethod: domain.PaymentPending,
		Discount:      quote.Discount,
		OtherFees:     quote.OtherFees,
		CustomerID:    customerID,
		Timestamp:     s.now(),
		ShiftID:       shift.ID,
		CashierName:   cashierName(ctx, req.CashierName),
		Status:        domain.TxStatusPending,
	}
	if err := s.persist(ctx, "hold", store.Patch{Transactions: []domain.Transaction{tx}}); err != nil {
		return domain.Transaction{}, err
	}

	s.events.Emit(events.TypeTransactionHeld, tx)
	s.logAudit(ctx, "transaction.hold", "transaction", tx.ID, fmt.Sprintf("total=%d", tx.Total))
	return tx, nil
}

// ResumeHold rebuilds the cart of a held transaction against live item data
// and removes the hold. If any line points at a deleted item or tier, every
// such line is reported and the hold is kept.
func (s *Service) ResumeHold(ctx context.Context, id string) (ResumeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return ResumeResult{}, err
	}
	tx, err := s.store.Transactions().Get(ctx, id)
	if err != nil {
		return ResumeResult{}, err
	}
	if tx.Status != domain.TxStatusPending {
		return ResumeResult{}, ErrNotPending
	}

	items, err := s.store.Items().List(ctx)
	if err != nil {
		return ResumeResult{}, err
	}
	lines, err := rehydrate(items, tx.Items)
	if err != nil {
		return ResumeResult{}, err
	}

	if err := s.persist(ctx, "resume_hold", store.Patch{DeletedTransactionIDs: []string{tx.ID}}); err != nil {
		return ResumeResult{}, err
	}

	return ResumeResult{
		TransactionID: tx.ID,
		Lines:         lines,
		Discount:      tx.Discount,
		OtherFees:     tx.OtherFees,
		CustomerID:    tx.CustomerID,
		Quote:         pricing.Calculate(lines, tx.Discount, tx.OtherFees, settings.TaxRatePercent),
	}, nil
}

// DiscardHold deletes a held transaction without resuming it.
func (s *Service) DiscardHold(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.store.Transactions().Get(ctx, id)
	if err != nil {
		return err
	}
	if tx.Status != domain.TxStatusPending {
		return ErrNotPending
	}
	if err := s.persist(ctx, "discard_hold", store.Patch{DeletedTransactionIDs: []string{tx.ID}}); err != nil {
		return err
	}
	s.logAudit(ctx, "transaction.discard_hold", "transaction", tx.ID, "")
	return nil
}

// Edit replaces the lines of a completed transaction in place. Stock moves by
// the per-(item, tier) difference between old and new lines. For a customer
// sale, a credit transaction's debt follows the total difference and any
// payment is taken off the debt and recorded against the active shift.
func (s *Service) Edit(ctx context.Context, id string, req domain.EditRequest) (EditResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.PaymentAmount < 0 {
		return EditResult{}, ErrInvalidAmount
	}
	if req.NewTotal != nil && *req.NewTotal < 0 {
		return EditResult{}, ErrInvalidAmount
	}

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return EditResult{}, err
	}
	shift, err := s.activeShift(ctx)
	if err != nil {
		return EditResult{}, err
	}
	original, err := s.store.Transactions().Get(ctx, id)
	if err != nil {
		return EditResult{}, err
	}
	if original.Status != domain.TxStatusCompleted {
		return EditResult{}, ErrNotEditable
	}

	items, err := s.store.Items().List(ctx)
	if err != nil {
		return EditResult{}, err
	}
	lines, err := resolveLines(items, req.Lines, false)
	if err != nil {
		return EditResult{}, err
	}

	deltas := ledger.DiffStock(original.Items, lines)
	updated, changed, err := ledger.BulkApply(items, deltas)
	if err != nil {
		return EditResult{}, err
	}

	// The original discount cannot exceed what is left in the cart.
	discount := min(original.Discount, pricing.Subtotal(lines))
	newTotal := pricing.Calculate(lines, discount, original.OtherFees, settings.TaxRatePercent).Total
	if req.NewTotal != nil {
		newTotal = *req.NewTotal
	}

	// A payment may only settle what is still owed on the edited total.
	owed := max(0, newTotal-(original.AmountPaid-original.Change))
	if req.PaymentAmount > owed {
		return EditResult{}, fmt.Errorf("%w: payment %d exceeds outstanding %d", ErrInvalidAmount, req.PaymentAmount, owed)
	}

	result := EditResult{Deltas: deltas}
	patch := store.Patch{Items: changed}

	if hasCustomer(original) && (req.PaymentAmount > 0 || newTotal != original.Total) {
		customer, err := s.store.Customers().Get(ctx, original.CustomerID)
		if err != nil {
			return EditResult{}, fmt.Errorf("customer %q: %w", original.CustomerID, err)
		}

		var debtDelta int64
		if original.PaymentMethod == domain.PaymentCredit {
			debtDelta = newTotal - original.Total
		}
		debtDelta -= req.PaymentAmount

		customer = ledger.ApplyDebtDelta(customer, debtDelta)
		patch.Customers = []domain.Customer{customer}
		result.Customer = &customer

		if req.PaymentAmount > 0 {
			payment := domain.DebtPayment{
				ID:         xid.New("pay"),
				CustomerID: customer.ID,
				Amount:     req.PaymentAmount,
				Timestamp:  s.now(),
				ShiftID:    shift.ID,
			}
			patch.DebtPayments = []domain.DebtPayment{payment}
			result.Payment = &payment
		}
	}

	edited := original
	edited.Items = snapshotItems(lines)
	edited.Total = newTotal
	if req.NewTotal == nil {
		edited.Discount = discount
	}
	if req.PaymentAmount > 0 {
		edited.AmountPaid += req.PaymentAmount
		if edited.AmountPaid >= newTotal {
			edited.PaymentMethod = domain.PaymentCash
		}
	}
	patch.Transactions = []domain.Transaction{edited}

	if err := s.persist(ctx, "edit", patch); err != nil {
		return EditResult{}, err
	}

	result.Transaction = edited
	result.Warnings = ledger.StockWarnings(updated, deltas)

	s.rememberLast(ctx, edited)
	s.metrics.TransactionEdited()
	s.events.Emit(events.TypeTransactionEdited, edited)
	s.emitStockWarnings(result.Warnings)
	s.logAudit(ctx, "transaction.edit", "transaction", edited.ID,
		fmt.Sprintf("total %d -> %d payment=%d", original.Total, newTotal, req.PaymentAmount))

	return result, nil
}

func (s *Service) GetTransaction(ctx context.Context, id string) (domain.Transaction, error) {
	return s.store.Transactions().Get(ctx, id)
}

// ListTransactions filters by shift and status when they are non-empty.
// Newest first.
func (s *Service) ListTransactions(ctx context.Context, shiftID string, status string) ([]domain.Transaction, error) {
	all, err := s.store.Transactions().List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.Transaction, 0, len(all))
	for _, tx := range all {
		if shiftID != "" && tx.ShiftID != shiftID {
			continue
		}
		if status != "" && tx.Status != status {
			continue
		}
		result = append(result, tx)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

// LastTransaction returns the most recently committed or edited sale.
func (s *Service) LastTransaction(ctx context.Context) (domain.Transaction, error) {
	cached, ok, err := s.lastTx.Get(ctx)
	if err != nil {
		s.logger.Warn("last transaction cache read failed", zap.Error(err))
	}
	if ok && cached != nil {
		// The cached snapshot may predate a later edit or a deletion.
		current, err := s.store.Transactions().Get(ctx, cached.ID)
		if err == nil {
			return current, nil
		}
	}

	completed, err := s.ListTransactions(ctx, "", domain.TxStatusCompleted)
	if err != nil {
		return domain.Transaction{}, err
	}
	if len(completed) == 0 {
		return domain.Transaction{}, store.ErrNotFound
	}
	return completed[0], nil
}

func (s *Service) Receipt(ctx context.Context, id string) (receipt.Receipt, error) {
	tx, err := s.store.Transactions().Get(ctx, id)
	if err != nil {
		return receipt.Receipt{}, err
	}
	return s.buildReceipt(ctx, tx)
}

func (s *Service) ReprintLast(ctx context.Context) (receipt.Receipt, error) {
	tx, err := s.LastTransaction(ctx)
	if err != nil {
		return receipt.Receipt{}, err
	}
	return s.buildReceipt(ctx, tx)
}

func (s *Service) buildReceipt(ctx context.Context, tx domain.Transaction) (receipt.Receipt, error) {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return receipt.Receipt{}, err
	}
	opts := receipt.Options{Settings: settings}
	if hasCustomer(tx) {
		if customer, err := s.store.Customers().Get(ctx, tx.CustomerID); err == nil {
			opts.CustomerName = customer.Name
		}
	}
	return receipt.Build(tx, opts), nil
}

func (s *Service) rememberLast(ctx context.Context, tx domain.Transaction) {
	if err := s.lastTx.Set(ctx, tx); err != nil {
		s.logger.Warn("last transaction cache write failed", zap.String("transaction_id", tx.ID), zap.Error(err))
	}
}

func (s *Service) activeShift(ctx context.Context) (domain.Shift, error) {
	shifts, err := s.store.Shifts().List(ctx)
	if err != nil {
		return domain.Shift{}, err
	}
	for _, shift := range shifts {
		if shift.Status == domain.ShiftStatusActive {
			return shift, nil
		}
	}
	return domain.Shift{}, ErrNoActiveShift
}

// resolveLines binds cart requests to live items. Every stale reference is
// collected and returned as one joined error.
func resolveLines(items []domain.Item, requests []domain.CartLineRequest, rejectDiscontinued bool) ([]domain.CartLine, error) {
	byID := make(map[string]domain.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	lines := make([]domain.CartLine, 0, len(requests))
	var stale []error
	for _, req := range requests {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s/%s must be positive", ErrInvalidAmount, req.ItemID, req.TierName)
		}
		item, ok := byID[req.ItemID]
		if !ok {
			stale = append(stale, &ledger.StaleItemReferenceError{ItemID: req.ItemID})
			continue
		}
		tier, ok := item.Tier(req.TierName)
		if !ok {
			stale = append(stale, &ledger.StaleItemReferenceError{ItemID: req.ItemID, TierName: req.TierName})
			continue
		}
		if rejectDiscontinued && item.SaleStatus == domain.SaleStatusDiscontinued {
			return nil, fmt.Errorf("%w: %s", ErrItemDiscontinued, item.Name)
		}
		lines = append(lines, domain.CartLine{Item: ledger.CloneItem(item), Tier: ledger.CloneTier(tier), Quantity: req.Quantity})
	}
	if len(stale) > 0 {
		return nil, errors.Join(stale...)
	}
	return lines, nil
}

func rehydrate(items []domain.Item, held []domain.TransactionItem) ([]domain.CartLine, error) {
	requests := make([]domain.CartLineRequest, 0, len(held))
	for _, item := range held {
		requests = append(requests, domain.CartLineRequest{
			ItemID:   item.ItemID,
			TierName: item.PriceTier.UnitName,
			Quantity: item.Quantity,
		})
	}
	return resolveLines(items, requests, false)
}

func quoteCart(lines []domain.CartLine, discount int64, otherFees int64, taxRatePercent float64) (pricing.Quote, error) {
	if len(lines) == 0 {
		return pricing.Quote{}, ErrEmptyCart
	}
	if discount < 0 || otherFees < 0 {
		return pricing.Quote{}, ErrInvalidAmount
	}
	if discount > pricing.Subtotal(lines) {
		return pricing.Quote{}, fmt.Errorf("%w: discount exceeds subtotal", ErrInvalidAmount)
	}
	return pricing.Calculate(lines, discount, otherFees, taxRatePercent), nil
}

func snapshotItems(lines []domain.CartLine) []domain.TransactionItem {
	out := make([]domain.TransactionItem, 0, len(lines))
	for _, line := range lines {
		out = append(out, domain.TransactionItem{
			ItemID:    line.Item.ID,
			Name:      line.Item.Name,
			Quantity:  line.Quantity,
			PriceTier: ledger.CloneTier(line.Tier),
		})
	}
	return out
}

func hasCustomer(tx domain.Transaction) bool {
	return tx.CustomerID != "" && tx.CustomerID != domain.WalkInCustomerID
}
