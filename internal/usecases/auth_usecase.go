package usecases

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"luma_assistant/internal/entities"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const RoleAdmin = "admin"

// AuthUsecase authenticates operators of the admin API. Operators live in
// memory; the owner account is seeded from configuration at startup.
type AuthUsecase struct {
	mu        sync.RWMutex
	operators map[string]entities.Operator
	jwtSecret []byte
	tokenTTL  time.Duration
	cost      int
	now       func() time.Time
}

func NewAuthUsecase(secret string) *AuthUsecase {
	return &AuthUsecase{
		operators: make(map[string]entities.Operator),
		jwtSecret: []byte(secret),
		tokenTTL:  24 * time.Hour,
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
	}
}

// EnsureAdmin creates the admin operator if it does not exist yet.
func (uc *AuthUsecase) EnsureAdmin(username, password string) error {
	if username == "" || password == "" {
		return errors.New("admin username and password are required")
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if _, ok := uc.operators[username]; ok {
		return nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), uc.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	uc.operators[username] = entities.Operator{
		Username:     username,
		PasswordHash: string(hashed),
		Role:         RoleAdmin,
	}
	return nil
}

func (uc *AuthUsecase) Login(username, password string) (string, error) {
	uc.mu.RLock()
	op, ok := uc.operators[username]
	uc.mu.RUnlock()
	if !ok {
		return "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  op.Username,
		"role": op.Role,
		"exp":  uc.now().Add(uc.tokenTTL).Unix(),
	})

	tokenString, err := token.SignedString(uc.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
