package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/events"
	"github.com/aamamaludin23/electronkasir/internal/ledger"
	"github.com/aamamaludin23/electronkasir/internal/store"
	"github.com/aamamaludin23/electronkasir/internal/xid"
)

type ShiftReport struct {
	Shift            domain.Shift     `json:"shift"`
	Balance          ledger.Balance   `json:"balance"`
	TransactionCount int              `json:"transaction_count"`
	SalesByMethod    map[string]int64 `json:"sales_by_method"`
	GrossSales       int64            `json:"gross_sales"`
	DebtCollected    int64            `json:"debt_collected"`
	HeldCount        int              `json:"held_count"`
}

// StartShift opens a new shift. At most one shift is active at a time.
func (s *Service) StartShift(ctx context.Context, req domain.StartShiftRequest) (domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.OpeningBalance < 0 {
		return domain.Shift{}, ErrInvalidAmount
	}
	if _, err := s.activeShift(ctx); err == nil {
		return domain.Shift{}, ErrShiftAlreadyActive
	} else if !errors.Is(err, ErrNoActiveShift) {
		return domain.Shift{}, err
	}

	shift := domain.Shift{
		ID:             xid.New("shift"),
		CashierName:    cashierName(ctx, req.CashierName),
		OpeningBalance: req.OpeningBalance,
		StartTime:      s.now(),
		Status:         domain.ShiftStatusActive,
		Expenses:       []domain.Expense{},
	}
	if err := s.persist(ctx, "start_shift", store.Patch{Shifts: []domain.Shift{shift}}); err != nil {
		return domain.Shift{}, err
	}

	s.logAudit(ctx, "shift.start", "shift", shift.ID, fmt.Sprintf("opening=%d", shift.OpeningBalance))
	return shift, nil
}

// ActiveShift is derived from the shift collection on every call.
func (s *Service) ActiveShift(ctx context.Context) (domain.Shift, error) {
	return s.activeShift(ctx)
}

func (s *Service) RecordExpense(ctx context.Context, req domain.ExpenseRequest) (domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Amount <= 0 {
		return domain.Shift{}, ErrInvalidAmount
	}
	shift, err := s.activeShift(ctx)
	if err != nil {
		return domain.Shift{}, err
	}

	takenBy := strings.TrimSpace(req.TakenBy)
	if takenBy == "" {
		takenBy = cashierName(ctx, "")
	}
	expense := domain.Expense{
		ID:          xid.New("exp"),
		Amount:      req.Amount,
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Description: strings.TrimSpace(req.Description),
		TakenBy:     takenBy,
		Timestamp:   s.now(),
	}
	shift.Expenses = append(append([]domain.Expense(nil), shift.Expenses...), expense)

	if err := s.persist(ctx, "record_expense", store.Patch{Shifts: []domain.Shift{shift}}); err != nil {
		return domain.Shift{}, err
	}

	s.logAudit(ctx, "shift.expense", "shift", shift.ID, fmt.Sprintf("amount=%d %s", expense.Amount, expense.Description))
	return shift, nil
}

// LiveBalance computes the drawer position of the active shift.
func (s *Service) LiveBalance(ctx context.Context) (ledger.Balance, error) {
	shift, err := s.activeShift(ctx)
	if err != nil {
		return ledger.Balance{}, err
	}
	return s.balanceOf(ctx, shift)
}

// CloseShift freezes the active shift's balance. A closed shift is never
// written again.
func (s *Service) CloseShift(ctx context.Context) (domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, err := s.activeShift(ctx)
	if err != nil {
		return domain.Shift{}, err
	}
	balance, err := s.balanceOf(ctx, shift)
	if err != nil {
		return domain.Shift{}, err
	}

	end := s.now()
	shift.Status = domain.ShiftStatusClosed
	shift.EndTime = &end
	shift.CashSales = balance.TotalCashIn()
	shift.FinalBalance = balance.CurrentBalance

	if err := s.persist(ctx, "close_shift", store.Patch{Shifts: []domain.Shift{shift}}); err != nil {
		return domain.Shift{}, err
	}

	s.metrics.ShiftClosed()
	s.events.Emit(events.TypeShiftClosed, shift)
	s.logAudit(ctx, "shift.close", "shift", shift.ID, fmt.Sprintf("final=%d", shift.FinalBalance))
	return shift, nil
}

func (s *Service) GetShift(ctx context.Context, id string) (domain.Shift, error) {
	return s.store.Shifts().Get(ctx, id)
}

// ListShifts returns shifts newest first.
func (s *Service) ListShifts(ctx context.Context) ([]domain.Shift, error) {
	shifts, err := s.store.Shifts().List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(shifts, func(i, j int) bool {
		return shifts[i].StartTime.After(shifts[j].StartTime)
	})
	return shifts, nil
}

// ShiftReport summarises a shift. For an active shift the balance is live.
func (s *Service) ShiftReport(ctx context.Context, id string) (ShiftReport, error) {
	shift, err := s.store.Shifts().Get(ctx, id)
	if err != nil {
		return ShiftReport{}, err
	}
	transactions, err := s.store.Transactions().List(ctx)
	if err != nil {
		return ShiftReport{}, err
	}
	payments, err := s.store.DebtPayments().List(ctx)
	if err != nil {
		return ShiftReport{}, err
	}

	report := ShiftReport{
		Shift:         shift,
		Balance:       ledger.ComputeBalance(shift, transactions, payments),
		SalesByMethod: map[string]int64{},
	}
	for _, tx := range transactions {
		if tx.ShiftID != shift.ID {
			continue
		}
		if tx.Status == domain.TxStatusPending {
			report.HeldCount++
			continue
		}
		report.TransactionCount++
		report.GrossSales += tx.Total
		report.SalesByMethod[tx.PaymentMethod] += tx.Total
	}
	report.DebtCollected = report.Balance.CashFromDebt
	return report, nil
}

func (s *Service) balanceOf(ctx context.Context, shift domain.Shift) (ledger.Balance, error) {
	transactions, err := s.store.Transactions().List(ctx)
	if err != nil {
		return ledger.Balance{}, err
	}
	payments, err := s.store.DebtPayments().List(ctx)
	if err != nil {
		return ledger.Balance{}, err
	}
	return ledger.ComputeBalance(shift, transactions, payments), nil
}
