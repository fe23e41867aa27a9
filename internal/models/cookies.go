package models

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// SessionCookie is the stored form of a backend session cookie. Only the name and value are kept.
type SessionCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EncodeCookies serializes the name and value of each cookie.
func EncodeCookies(cookies []*http.Cookie) ([]byte, error) {
	out := make([]SessionCookie, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		out = append(out, SessionCookie{Name: c.Name, Value: c.Value})
	}
	return json.Marshal(out)
}

// DecodeCookies parses data written by [EncodeCookies]. Restored cookies apply to every path.
func DecodeCookies(data []byte) ([]*http.Cookie, error) {
	var stored []SessionCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to parse session cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		if c.Name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	return cookies, nil
}
