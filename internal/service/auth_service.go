package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"irrigation_controller/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Operator sign-in errors.
var (
	ErrInvalidPassword = errors.New("operator password does not match")
	ErrUserNotFound    = errors.New("operator account not found")
	ErrInvalidToken    = errors.New("operator token rejected")
)

// tokenIssuer is stamped into every operator token and required on parse.
const tokenIssuer = "irrigation-controller"

// AuthService manages operator accounts and the bearer tokens that guard the controller API.
type AuthService struct {
	authRepo   repository.Authorization
	signingKey []byte
	tokenTTL   time.Duration
}

func NewAuthService(repo repository.Authorization, signingKey string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	return &AuthService{authRepo: repo, signingKey: []byte(signingKey), tokenTTL: tokenTTL}
}

// SignUp registers an operator account under a bcrypt hash of password.
func (s *AuthService) SignUp(ctx context.Context, username, password string) (int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, fmt.Errorf("%w: operator name is empty", ErrValidation)
	}
	hash, err := hashPassword(password)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return s.authRepo.Create(ctx, username, hash)
}

// OperatorClaims is the payload of an operator token.
type OperatorClaims struct {
	jwt.RegisteredClaims
	OperatorID int `json:"operator_id"`
}

// GenerateToken checks the operator's credentials and issues a session token.
func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (string, error) {
	u, err := s.authRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", ErrUserNotFound
	}
	if err := verifyPassword(u.PasswordHash, password); err != nil {
		return "", ErrInvalidPassword
	}
	return s.issueToken(u.ID, u.Username)
}

// ParseToken validates an operator token and returns the operator id it was issued to.
func (s *AuthService) ParseToken(accessToken string) (int, error) {
	claims := &OperatorClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(*jwt.Token) (interface{}, error) {
		return s.signingKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.OperatorID <= 0 {
		return 0, ErrInvalidToken
	}
	return claims.OperatorID, nil
}

func hashPassword(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		return "", errors.New("operator password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash operator password: %w", err)
	}
	return string(hash), nil
}

func verifyPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) issueToken(operatorID int, username string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OperatorID: operatorID,
	})
	return token.SignedString(s.signingKey)
}
