package shared

import (
	"errors"
	"testing"
)

func TestOpenBrowser(t *testing.T) {
	t.Run("Unsupported Platform", func(t *testing.T) {
		orig := getRuntime
		getRuntime = func() string { return "plan9" }
		defer func() { getRuntime = orig }()

		if err := OpenBrowser("http://example.com"); err == nil {
			t.Error("expected error for unsupported platform")
		}
	})

	t.Run("Rejects Non HTTP URLs", func(t *testing.T) {
		orig := getRuntime
		getRuntime = func() string { return "plan9" }
		defer func() { getRuntime = orig }()

		for _, raw := range []string{"file:///etc/passwd", "javascript:alert(1)", "not a url", "https://"} {
			if err := OpenBrowser(raw); !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput for %q, got %v", raw, err)
			}
		}
	})

	t.Run("NavigatorFunc", func(t *testing.T) {
		var got string
		nav := NavigatorFunc(func(url string) error {
			got = url
			return nil
		})

		if err := nav.Navigate("http://example.com/authorize"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "http://example.com/authorize" {
			t.Errorf("expected url to be passed through, got %q", got)
		}
	})
}
