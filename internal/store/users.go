package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/aamamaludin23/electronkasir/internal/domain"
)

// UserDirectory adapts the users repository to the operations the auth
// layer needs.
type UserDirectory struct {
	users Repository[domain.UserAccount]
}

func NewUserDirectory(users Repository[domain.UserAccount]) *UserDirectory {
	return &UserDirectory{users: users}
}

func (d *UserDirectory) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if _, err := d.users.Get(ctx, user.Username); err == nil {
		return fmt.Errorf("%w: username already exists", ErrInvalidTransaction)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return d.users.Save(ctx, user)
}

func (d *UserDirectory) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return d.users.List(ctx)
}

func (d *UserDirectory) UpdateUserPassword(ctx context.Context, username string, password string) error {
	user, err := d.users.Get(ctx, username)
	if err != nil {
		return err
	}
	user.Password = password
	return d.users.Save(ctx, user)
}

// SeedUsers creates the admin and cashier accounts when the users
// collection is empty. Passwords are stored as bcrypt hashes.
func SeedUsers(ctx context.Context, users Repository[domain.UserAccount], adminPassword string, cashierPassword string) (bool, error) {
	existing, err := users.List(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	now := time.Now().UTC()
	for _, seed := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPassword, domain.RoleAdmin},
		{"cashier", cashierPassword, domain.RoleCashier},
	} {
		if strings.TrimSpace(seed.password) == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(seed.password), bcrypt.DefaultCost)
		if err != nil {
			return false, fmt.Errorf("hash seed password for %s: %w", seed.username, err)
		}
		if err := users.Save(ctx, domain.UserAccount{
			Username:  seed.username,
			Password:  string(hash),
			Role:      seed.role,
			Active:    true,
			CreatedAt: now,
		}); err != nil {
			return false, err
		}
	}
	return true, nil
}

// EnsureWalkInCustomer creates the walk-in customer if it is missing.
func EnsureWalkInCustomer(ctx context.Context, customers Repository[domain.Customer]) error {
	if _, err := customers.Get(ctx, domain.WalkInCustomerID); err == nil {
		return nil
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return customers.Save(ctx, domain.Customer{ID: domain.WalkInCustomerID, Name: "Walk-in"})
}
