package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aamamaludin23/electronkasir/internal/domain"
	"github.com/aamamaludin23/electronkasir/internal/events"
	"github.com/aamamaludin23/electronkasir/internal/ledger"
	"github.com/aamamaludin23/electronkasir/internal/store"
	"github.com/aamamaludin23/electronkasir/internal/xid"
)

type CustomerHistory struct {
	Customer     domain.Customer      `json:"customer"`
	Transactions []domain.Transaction `json:"transactions"`
	Payments     []domain.DebtPayment `json:"payments"`
}

// PayDebt records a repayment into the active shift's drawer.
func (s *Service) PayDebt(ctx context.Context, req domain.PayDebtRequest) (domain.Customer, domain.DebtPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, err := s.activeShift(ctx)
	if err != nil {
		return domain.Customer{}, domain.DebtPayment{}, err
	}
	customer, err := s.store.Customers().Get(ctx, strings.TrimSpace(req.CustomerID))
	if err != nil {
		return domain.Customer{}, domain.DebtPayment{}, err
	}
	if req.Amount <= 0 || req.Amount > customer.OutstandingDebt {
		return domain.Customer{}, domain.DebtPayment{}, fmt.Errorf("%w: payment must be between 1 and %d", ErrInvalidAmount, customer.OutstandingDebt)
	}

	payment := domain.DebtPayment{
		ID:         xid.New("pay"),
		CustomerID: customer.ID,
		Amount:     req.Amount,
		Timestamp:  s.now(),
		ShiftID:    shift.ID,
	}
	customer = ledger.ApplyDebtDelta(customer, -req.Amount)

	err = s.persist(ctx, "pay_debt", store.Patch{
		Customers:    []domain.Customer{customer},
		DebtPayments: []domain.DebtPayment{payment},
	})
	if err != nil {
		return domain.Customer{}, domain.DebtPayment{}, err
	}

	s.events.Emit(events.TypeDebtPaid, payment)
	s.logAudit(ctx, "debt.pay", "customer", customer.ID, fmt.Sprintf("amount=%d remaining=%d", payment.Amount, customer.OutstandingDebt))
	return customer, payment, nil
}

// ListDebtPayments filters by customer when customerID is non-empty.
func (s *Service) ListDebtPayments(ctx context.Context, customerID string) ([]domain.DebtPayment, error) {
	all, err := s.store.DebtPayments().List(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.DebtPayment, 0, len(all))
	for _, payment := range all {
		if customerID != "" && payment.CustomerID != customerID {
			continue
		}
		result = append(result, payment)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result, nil
}

func (s *Service) CustomerHistory(ctx context.Context, customerID string) (CustomerHistory, error) {
	customer, err := s.store.Customers().Get(ctx, customerID)
	if err != nil {
		return CustomerHistory{}, err
	}
	all, err := s.ListTransactions(ctx, "", domain.TxStatusCompleted)
	if err != nil {
		return CustomerHistory{}, err
	}
	transactions := make([]domain.Transaction, 0)
	for _, tx := range all {
		if tx.CustomerID == customer.ID {
			transactions = append(transactions, tx)
		}
	}
	payments, err := s.ListDebtPayments(ctx, customer.ID)
	if err != nil {
		return CustomerHistory{}, err
	}
	return CustomerHistory{Customer: customer, Transactions: transactions, Payments: payments}, nil
}
