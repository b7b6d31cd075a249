package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mr-tron/base58"
)

const (
	// TokenPrefix is the prefix for all generated tokens
	TokenPrefix = "canteen_"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token has been revoked")
	ErrTokenExpired = errors.New("token has expired")
)

// TokenStore manages API token operations
type TokenStore struct {
	repo *Repository
	now  func() time.Time
}

// NewTokenStore creates a new token store
func NewTokenStore(repo *Repository) *TokenStore {
	return &TokenStore{repo: repo, now: time.Now}
}

// GenerateToken creates a new random token with the canteen_ prefix
// Format: canteen_ + Base58(SHA256(random_bytes))
func (s *TokenStore) GenerateToken() (rawToken string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	hash := sha256.Sum256(randomBytes)
	rawToken = TokenPrefix + base58.Encode(hash[:])
	return rawToken, hashToken(rawToken), nil
}

// hashToken creates a SHA256 hash of a token for storage
func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// IssueToken creates a token for the user. Only the hash is stored, the
// raw value is returned once.
func (s *TokenStore) IssueToken(ctx context.Context, userID int64, label string, expiresAt *time.Time) (*TokenWithRaw, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, fmt.Errorf("token label is required")
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found", userID)
	}

	rawToken, tokenHash, err := s.GenerateToken()
	if err != nil {
		return nil, err
	}

	result, err := s.repo.db.ExecContext(ctx, `
		INSERT INTO tokens (user_id, token_hash, label, expires_at)
		VALUES (?, ?, ?, ?)
	`, userID, tokenHash, label, expiresAt)
	if err != nil {
		return nil, err
	}
	tokenID, _ := result.LastInsertId()

	return &TokenWithRaw{
		Token: Token{
			ID:        tokenID,
			UserID:    userID,
			Label:     label,
			ExpiresAt: expiresAt,
			CreatedAt: s.now(),
		},
		RawToken: rawToken,
	}, nil
}

// ValidateToken validates a raw token and returns the token with user info
func (s *TokenStore) ValidateToken(ctx context.Context, rawToken string) (*ValidatedToken, error) {
	if !strings.HasPrefix(rawToken, TokenPrefix) {
		return nil, ErrInvalidToken
	}

	var t Token
	var expiresAt, revokedAt sql.NullTime
	err := s.repo.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, label, expires_at, revoked_at, created_at
		FROM tokens WHERE token_hash = ?
	`, hashToken(rawToken)).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.Label, &expiresAt, &revokedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	t.ExpiresAt = ScanNullableTime(expiresAt)
	t.RevokedAt = ScanNullableTime(revokedAt)

	if t.RevokedAt != nil {
		return nil, ErrTokenRevoked
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(s.now()) {
		return nil, ErrTokenExpired
	}

	user, err := s.repo.GetUserByID(ctx, t.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return &ValidatedToken{Token: &t, User: user}, nil
}

// ListUserTokens returns all tokens for a user (without raw values)
func (s *TokenStore) ListUserTokens(ctx context.Context, userID int64) ([]Token, error) {
	rows, err := s.repo.db.QueryContext(ctx, `
		SELECT id, user_id, label, expires_at, revoked_at, created_at
		FROM tokens WHERE user_id = ? ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := []Token{}
	for rows.Next() {
		var t Token
		var expiresAt, revokedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.Label, &expiresAt, &revokedAt, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.ExpiresAt = ScanNullableTime(expiresAt)
		t.RevokedAt = ScanNullableTime(revokedAt)
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// RevokeToken revokes a token (user can only revoke their own tokens)
func (s *TokenStore) RevokeToken(ctx context.Context, tokenID int64, userID int64) error {
	result, err := s.repo.db.ExecContext(ctx, `
		UPDATE tokens SET revoked_at = ?
		WHERE id = ? AND user_id = ? AND revoked_at IS NULL
	`, s.now(), tokenID, userID)
	if err != nil {
		return err
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("token not found or already revoked")
	}
	return nil
}
