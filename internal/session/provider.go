package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"photogram-backend/internal/models"
	"photogram-backend/internal/repository"

	"github.com/golang-jwt/jwt/v5"
)

const sessionExpDays = 365

// ErrInvalidToken is returned for tokens that fail verification
var ErrInvalidToken = errors.New("invalid token")

// IdentityClaims are the claims of an identity token issued by the sign-in provider
type IdentityClaims struct {
	Name    string `json:"name"`
	Picture string `json:"picture"`
	jwt.RegisteredClaims
}

// Provider verifies identity tokens, issues session tokens and owns the user documents
// created at first sign-in
type Provider struct {
	users  *repository.UserRepository
	secret []byte
	issuer string
	now    func() time.Time
}

// NewProvider creates a new session provider
func NewProvider(users *repository.UserRepository, secret, issuer string) *Provider {
	return &Provider{
		users:  users,
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Authenticate verifies an identity token and returns the signed-in user, creating the
// default user document on first sign-in
func (p *Provider) Authenticate(ctx context.Context, identityToken string) (*models.User, error) {
	claims, err := p.verifyIdentity(identityToken)
	if err != nil {
		return nil, err
	}

	user, err := p.users.GetByID(ctx, claims.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	user = &models.User{
		ID:        claims.Subject,
		Username:  claims.Name,
		Avatar:    claims.Picture,
		Following: 0,
		Followers: 0,
	}
	if err := p.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// LoadUser reads the user a session token was issued for
func (p *Provider) LoadUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// IssueIdentityToken signs an identity token. Production tokens come from the sign-in
// provider; this exists for development clients and tests.
func (p *Provider) IssueIdentityToken(subject, name, picture string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := IdentityClaims{
		Name:    name,
		Picture: picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// IssueSessionToken generates a session token for a user
func (p *Provider) IssueSessionToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     p.now().AddDate(0, 0, sessionExpDays).Unix(),
		"iat":     p.now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateSessionToken validates a session token and returns the user ID
func (p *Provider) ValidateSessionToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, p.keyFunc, jwt.WithTimeFunc(p.now))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("%w: user_id not found in token", ErrInvalidToken)
	}
	return userID, nil
}

func (p *Provider) verifyIdentity(tokenString string) (*IdentityClaims, error) {
	var claims IdentityClaims
	opts := []jwt.ParserOption{jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired()}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &claims, p.keyFunc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("%w: subject not found in token", ErrInvalidToken)
	}
	return &claims, nil
}

func (p *Provider) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return p.secret, nil
}
