package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/desertthunder/tunebridge/internal/models"
)

const (
	// DefaultTokenFileName is the file [NewFilePersister] uses when no path is configured.
	DefaultTokenFileName = "token_info.json"

	// CookieFileName holds the backend session cookies, next to the token file.
	CookieFileName = "session_cookies.json"
)

// Persister stores the token record across process restarts.
//
// Load returns (nil, nil) when nothing has been stored.
type Persister interface {
	Load(ctx context.Context) (*models.TokenRecord, error)
	Save(ctx context.Context, rec *models.TokenRecord) error
	Clear(ctx context.Context) error
}

// NopPersister keeps nothing.
type NopPersister struct{}

func (NopPersister) Load(context.Context) (*models.TokenRecord, error) { return nil, nil }
func (NopPersister) Save(context.Context, *models.TokenRecord) error   { return nil }
func (NopPersister) Clear(context.Context) error                       { return nil }

// FilePersister writes the raw token_info JSON to a file, and the backend session cookies to [CookieFileName] beside it.
type FilePersister struct {
	path string
}

// NewFilePersister creates a [FilePersister] at path.
// If path is empty, uses the default location (~/.config/tunebridge/token_info.json).
func NewFilePersister(path string) (*FilePersister, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		path = filepath.Join(configDir, "tunebridge", DefaultTokenFileName)
	}
	return &FilePersister{path: path}, nil
}

// Path returns the path to the token file.
func (p *FilePersister) Path() string {
	return p.path
}

// Save persists the record with owner-only permissions.
func (p *FilePersister) Save(ctx context.Context, rec *models.TokenRecord) error {
	if rec == nil {
		return p.Clear(ctx)
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	data, err := rec.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}

	if err := os.WriteFile(p.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Load reads the record from disk.
func (p *FilePersister) Load(context.Context) (*models.TokenRecord, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	rec, err := models.ParseTokenRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token file: %w", err)
	}
	return rec, nil
}

// Clear removes the token and cookie files.
func (p *FilePersister) Clear(context.Context) error {
	var errs []error
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to delete token file: %w", err))
	}
	if err := os.Remove(p.cookiePath()); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to delete cookie file: %w", err))
	}
	return errors.Join(errs...)
}

func (p *FilePersister) cookiePath() string {
	return filepath.Join(filepath.Dir(p.path), CookieFileName)
}

// LoadCookies reads the stored session cookies.
func (p *FilePersister) LoadCookies(context.Context) ([]*http.Cookie, error) {
	data, err := os.ReadFile(p.cookiePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}
	return models.DecodeCookies(data)
}

// SaveCookies writes the session cookies with owner-only permissions. An empty slice removes the file.
func (p *FilePersister) SaveCookies(_ context.Context, cookies []*http.Cookie) error {
	if len(cookies) == 0 {
		if err := os.Remove(p.cookiePath()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete cookie file: %w", err)
		}
		return nil
	}

	data, err := models.EncodeCookies(cookies)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	if err := os.WriteFile(p.cookiePath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}
