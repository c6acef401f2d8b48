package service

import (
	"errors"
	"fmt"

	"github.com/aamamaludin23/electronkasir/internal/store"
)

var (
	ErrNoActiveShift      = errors.New("no active shift")
	ErrShiftAlreadyActive = errors.New("a shift is already active")
	ErrNotEditable        = errors.New("transaction is not editable")
	ErrNotPending         = errors.New("transaction is not on hold")
	ErrForbidden          = errors.New("admin role required")

	// ErrPersistence marks a failed atomic write. Nothing was changed and the
	// operation can be retried.
	ErrPersistence = errors.New("persistence failed")

	ErrInvalidCreditCustomer = fmt.Errorf("%w: credit sales need a registered customer", store.ErrInvalidTransaction)
	ErrInsufficientPayment   = fmt.Errorf("%w: cash tendered is less than the total", store.ErrInvalidTransaction)
	ErrBankRequired          = fmt.Errorf("%w: debit payments need a bank", store.ErrInvalidTransaction)
	ErrInvalidPaymentMethod  = fmt.Errorf("%w: unsupported payment method", store.ErrInvalidTransaction)
	ErrEmptyCart             = fmt.Errorf("%w: cart is empty", store.ErrInvalidTransaction)
	ErrItemDiscontinued      = fmt.Errorf("%w: item is discontinued", store.ErrInvalidTransaction)
	ErrInvalidAmount         = fmt.Errorf("%w: invalid amount", store.ErrInvalidTransaction)
	ErrItemInUse             = fmt.Errorf("%w: item is part of completed sales, mark it discontinued instead", store.ErrInvalidTransaction)
)
