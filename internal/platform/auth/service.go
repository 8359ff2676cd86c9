package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/apperr"
	"github.com/Muskansingh2005/Library-feature-QR/internal/platform/ident"
)

const (
	RoleLibrarian = "librarian"
	RoleAdmin     = "admin"
)

const minPasswordLen = 8

type AuthService interface {
	Login(ctx context.Context, id, password string) (string, error)
	Register(ctx context.Context, id, password, role string) error
}

type Service struct {
	store  AccountStore
	secret []byte
	ttl    time.Duration
	clock  ident.Clock
}

// 秘密鍵は設定から受け取る．パッケージ変数には持たない
func NewService(store AccountStore, secret []byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{store: store, secret: secret, ttl: ttl, clock: ident.RealClock{}}
}

func (s *Service) Login(ctx context.Context, id, password string) (string, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load account: %w", err)
	}
	// ID違いとパスワード違いは区別しない
	if acct == nil {
		return "", apperr.ErrUnauthorized("invalid id or password")
	}
	if acct.IsDisabled {
		return "", apperr.ErrForbidden("account disabled")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", apperr.ErrUnauthorized("invalid id or password")
	}

	now := s.clock.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  acct.ID,
		"role": acct.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *Service) Register(ctx context.Context, id, password, role string) error {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > 64 {
		return apperr.ErrInvalid("id must be 1-64 characters")
	}
	if len(password) < minPasswordLen {
		return apperr.ErrInvalid(fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if role == "" {
		role = RoleLibrarian
	}
	if role != RoleLibrarian && role != RoleAdmin {
		return apperr.ErrInvalid("role must be librarian or admin")
	}

	exists, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if exists != nil {
		return apperr.ErrConflict("id already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return s.store.Create(ctx, &Account{
		ID:           id,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    s.clock.Now(),
	})
}

type Claims struct {
	Subject string
	Role    string
}

// ParseToken は HS256 固定で検証する（none攻撃とか回避）
func ParseToken(secret []byte, tokenStr string) (Claims, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || token == nil || !token.Valid {
		return Claims{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, errors.New("invalid claims")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Claims{}, errors.New("missing sub")
	}
	role, _ := claims["role"].(string)
	return Claims{Subject: sub, Role: role}, nil
}
