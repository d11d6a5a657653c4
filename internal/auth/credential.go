package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
)

// Cookie names accepted for the session token, in precedence order.
const (
	CookieSessionToken       = "ladtc.session_token"
	CookieLegacySessionToken = "better-auth.session_token"
)

// DefaultCookieNames lists the accepted cookies, first match wins.
func DefaultCookieNames() []string {
	return []string{CookieSessionToken, CookieLegacySessionToken}
}

// CredentialExtractor reads the session token from request transport.
type CredentialExtractor struct {
	cookieNames []string
	secret      []byte
}

// NewCredentialExtractor builds an extractor. When secret is non-empty cookie
// values must carry a valid "<token>.<signature>" HMAC-SHA256 signature.
func NewCredentialExtractor(cookieNames []string, secret string) CredentialExtractor {
	names := make([]string, 0, len(cookieNames))
	for _, name := range cookieNames {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		names = DefaultCookieNames()
	}
	return CredentialExtractor{cookieNames: names, secret: []byte(secret)}
}

// Extract returns the raw token or "" when none is usable. The first cookie
// present decides; the Authorization bearer header is only consulted when no
// session cookie is set.
func (e CredentialExtractor) Extract(r *http.Request) string {
	for _, name := range e.cookieNames {
		cookie, err := r.Cookie(name)
		if err != nil {
			continue
		}
		return e.verify(cookie.Value)
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (e CredentialExtractor) verify(value string) string {
	if decoded, err := url.PathUnescape(value); err == nil {
		value = decoded
	}
	value = strings.TrimSpace(value)
	if len(e.secret) == 0 {
		return value
	}
	idx := strings.LastIndexByte(value, '.')
	if idx <= 0 || idx == len(value)-1 {
		return ""
	}
	token, signature := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(signature), []byte(SignToken(token, string(e.secret)))) {
		return ""
	}
	return token
}

// SignToken computes the cookie signature for token.
func SignToken(token, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(token))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
