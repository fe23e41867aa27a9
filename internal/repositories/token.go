package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/tunebridge/internal/models"
	"github.com/desertthunder/tunebridge/internal/shared"
)

const (
	// TokenKey is the kv_store key holding the raw token_info JSON.
	TokenKey = "token_info"

	// CookieKey is the kv_store key holding the backend session cookies.
	CookieKey = "session_cookies"
)

// TokenRepository persists the token record and the backend session cookies in kv_store.
type TokenRepository struct {
	kv *KVStore
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{kv: NewKVStore(db)}
}

// Load returns the stored record, or nil when none is stored.
func (r *TokenRepository) Load(ctx context.Context) (*models.TokenRecord, error) {
	value, err := r.kv.Get(ctx, TokenKey)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec, err := models.ParseTokenRecord([]byte(value))
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored token: %w", err)
	}
	return rec, nil
}

// Save stores the record's raw JSON. A nil record clears the row.
func (r *TokenRepository) Save(ctx context.Context, rec *models.TokenRecord) error {
	if rec == nil {
		return r.Clear(ctx)
	}

	data, err := rec.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	return r.kv.Put(ctx, TokenKey, string(data))
}

// Clear removes the stored record and cookies.
func (r *TokenRepository) Clear(ctx context.Context) error {
	return errors.Join(r.kv.Delete(ctx, TokenKey), r.kv.Delete(ctx, CookieKey))
}

// LoadCookies returns the stored session cookies, or nil when none are stored.
func (r *TokenRepository) LoadCookies(ctx context.Context) ([]*http.Cookie, error) {
	value, err := r.kv.Get(ctx, CookieKey)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return models.DecodeCookies([]byte(value))
}

// SaveCookies stores the session cookies. An empty slice clears the row.
func (r *TokenRepository) SaveCookies(ctx context.Context, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		return r.kv.Delete(ctx, CookieKey)
	}

	data, err := models.EncodeCookies(cookies)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	return r.kv.Put(ctx, CookieKey, string(data))
}
