package httpapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aamamaludin23/electronkasir/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveAccount    = errors.New("account is inactive")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// UserStore is the persistence the auth layer needs. store.UserDirectory
// implements it for every backend.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type AuthManager struct {
	secret         []byte
	tokenTTL       time.Duration
	managerPINHash string
	users          UserStore
	logger         *zap.Logger
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, managerPIN string, users UserStore, logger *zap.Logger) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	manager := &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		logger:   logger,
	}
	// An empty PIN leaves the hash empty, which disables PIN-gated actions.
	if pin := strings.TrimSpace(managerPIN); pin != "" {
		hash, err := hashPassword(pin)
		if err != nil {
			logger.Error("failed to hash manager pin, pin-gated actions disabled", zap.Error(err))
		} else {
			manager.managerPINHash = hash
		}
	}
	return manager
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	user, err := a.findUser(ctx, username)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	if !isPasswordHash(user.Password) {
		// Accounts written before hashing was introduced are upgraded on
		// their first successful login.
		if user.Password == "" || user.Password != req.Password {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		if hash, err := hashPassword(req.Password); err == nil {
			if err := a.users.UpdateUserPassword(ctx, user.Username, hash); err != nil {
				a.logger.Warn("failed to upgrade legacy password", zap.String("username", user.Username), zap.Error(err))
			}
		}
	} else if !verifyPassword(user.Password, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, ErrInactiveAccount
	}

	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(user.Username, user.Role, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithIssuer("electronkasir"))
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{Username: sub, Role: claims.Role}, nil
}

func (a *AuthManager) sign(username string, role string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "electronkasir",
		},
		Role: role,
	}
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
}

// ValidateManagerPIN gates transaction edits.
func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	input := strings.TrimSpace(pin)
	if input == "" || a.managerPINHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.managerPINHash), []byte(input)) == nil
}

func (a *AuthManager) CreateCashier(ctx context.Context, req domain.CashierCreateRequest) (domain.CashierUser, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if len(username) < 4 {
		return domain.CashierUser{}, errors.New("username must be at least 4 characters")
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return domain.CashierUser{}, errors.New("username must not contain spaces")
	}
	if len(strings.TrimSpace(req.Password)) < 6 {
		return domain.CashierUser{}, errors.New("password must be at least 6 characters")
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		return domain.CashierUser{}, fmt.Errorf("hash password: %w", err)
	}
	account := domain.UserAccount{
		Username:  username,
		Password:  hash,
		Role:      domain.RoleCashier,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.users.CreateUser(ctx, account); err != nil {
		return domain.CashierUser{}, err
	}
	return toCashierUser(account), nil
}

func (a *AuthManager) ListCashiers(ctx context.Context) ([]domain.CashierUser, error) {
	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]domain.CashierUser, 0, len(users))
	for _, user := range users {
		if user.Role == domain.RoleCashier {
			result = append(result, toCashierUser(user))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Username < result[j].Username
	})
	return result, nil
}

func (a *AuthManager) findUser(ctx context.Context, username string) (domain.UserAccount, error) {
	if username == "" {
		return domain.UserAccount{}, ErrInvalidCredentials
	}
	users, err := a.users.ListUsers(ctx)
	if err != nil {
		return domain.UserAccount{}, err
	}
	for _, user := range users {
		if strings.ToLower(strings.TrimSpace(user.Username)) == username {
			return user, nil
		}
	}
	return domain.UserAccount{}, ErrInvalidCredentials
}

func toCashierUser(user domain.UserAccount) domain.CashierUser {
	return domain.CashierUser{
		Username:  user.Username,
		Role:      user.Role,
		Active:    user.Active,
		CreatedAt: user.CreatedAt,
	}
}

func verifyPassword(stored string, input string) bool {
	if strings.TrimSpace(input) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
