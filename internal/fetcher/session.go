package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Session holds the cookie state of one source invocation. It implements
// http.CookieJar; once closed it neither stores nor returns cookies.
type Session struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	closed bool
}

// NewSession returns an empty session.
func NewSession() *Session {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &Session{jar: jar}
}

// SetCookies implements http.CookieJar.
func (s *Session) SetCookies(u *url.URL, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	return s.jar.Cookies(u)
}

// Close drops the session's cookies.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.jar = nil
}

type sessionKey struct{}

// WithSession scopes s to ctx. Transports wrapped by NewSessionTransport
// read it from the request context.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session bound by WithSession, or nil.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey{}).(*Session)
	return s
}

// SessionTransport applies the request context's session to every hop,
// redirects included. Requests without a session carry no cookies, so
// the shared HTTP clients never hold cookie state of their own.
type SessionTransport struct {
	base http.RoundTripper
}

// NewSessionTransport wraps base, defaulting to http.DefaultTransport.
func NewSessionTransport(base http.RoundTripper) *SessionTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &SessionTransport{base: base}
}

// RoundTrip implements http.RoundTripper.
func (t *SessionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	sess := SessionFromContext(req.Context())
	if sess != nil {
		if cookies := sess.Cookies(req.URL); len(cookies) > 0 {
			req = req.Clone(req.Context())
			for _, c := range cookies {
				req.AddCookie(c)
			}
		}
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("session roundtrip: %w", err)
	}
	if sess != nil {
		if cookies := resp.Cookies(); len(cookies) > 0 {
			sess.SetCookies(req.URL, cookies)
		}
	}
	return resp, nil
}
