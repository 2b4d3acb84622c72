package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	msgLoginSuccess     = "Login successful!"
	msgLoginInvalid     = "Invalid username or password"
	msgLoggedOut        = "You have been logged out."
	msgLoginRequired    = "Please log in to access this page."
	msgLoginRateLimited = "Too many login attempts. Please wait a moment."
	msgAuthRequired     = "Authentication required"

	loginAttemptInterval = 100 * time.Millisecond
)

type sessionClaims struct {
	jwt.RegisteredClaims
	Remember bool `json:"remember,omitempty"`
}

// sessionManager issues and verifies the signed session cookie. Logged-out
// token IDs are remembered until the token would have expired anyway.
type sessionManager struct {
	key         []byte
	ttlShort    time.Duration
	ttlRemember time.Duration
	now         func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
}

func newSessionManager(key []byte, short, remember time.Duration) *sessionManager {
	return &sessionManager{
		key:         key,
		ttlShort:    short,
		ttlRemember: remember,
		now:         time.Now,
		revoked:     make(map[string]time.Time),
	}
}

func newTokenID() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}

func (m *sessionManager) issue(username string, remember bool) (string, time.Time, error) {
	id, err := newTokenID()
	if err != nil {
		return "", time.Time{}, err
	}
	now := m.now()
	ttl := m.ttlShort
	if remember {
		ttl = m.ttlRemember
	}
	expires := now.Add(ttl)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    panelSoftwareName,
			Subject:   username,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Remember: remember,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (m *sessionManager) parse(token string) (*sessionClaims, error) {
	if token == "" {
		return nil, errors.New("missing session token")
	}
	claims := new(sessionClaims)
	tok, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return m.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(panelSoftwareName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, err
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, errors.New("invalid session token")
	}
	m.mu.Lock()
	_, revoked := m.revoked[claims.ID]
	m.mu.Unlock()
	if revoked {
		return nil, errors.New("session revoked")
	}
	return claims, nil
}

func (m *sessionManager) revoke(claims *sessionClaims) {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return
	}
	m.mu.Lock()
	m.revoked[claims.ID] = claims.ExpiresAt.Time
	m.mu.Unlock()
	m.pruneRevoked()
}

func (m *sessionManager) pruneRevoked() {
	now := m.now()
	m.mu.Lock()
	for id, exp := range m.revoked {
		if now.After(exp) {
			delete(m.revoked, id)
		}
	}
	m.mu.Unlock()
}

type sessionContextKey struct{}

type sessionInfo struct {
	username string
	claims   *sessionClaims
}

func currentUser(r *http.Request) string {
	if info, ok := r.Context().Value(sessionContextKey{}).(sessionInfo); ok {
		return info.username
	}
	return ""
}

func currentSession(r *http.Request) *sessionClaims {
	if info, ok := r.Context().Value(sessionContextKey{}).(sessionInfo); ok {
		return info.claims
	}
	return nil
}

func (s *WebServer) sessionFromRequest(r *http.Request) (*sessionClaims, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, false
	}
	claims, err := s.sessions.parse(cookie.Value)
	if err != nil {
		logger.Debug("rejecting session cookie", "error", err)
		return nil, false
	}
	return claims, true
}

// requireLogin guards every page and API route. Pages bounce to the login
// form; API calls get a 401 envelope.
func (s *WebServer) requireLogin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := s.sessionFromRequest(r)
		if !ok {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				writeJSON(w, http.StatusUnauthorized, errorResult(msgAuthRequired))
				return
			}
			setFlash(w, r, flashInfo, msgLoginRequired)
			http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey{}, sessionInfo{username: claims.Subject, claims: claims})
		next(w, r.WithContext(ctx))
	}
}

// allowLoginAttempt admits at most one credential check per interval across
// all clients.
func (s *WebServer) allowLoginAttempt(now time.Time) bool {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	if now.Before(s.loginNext) {
		return false
	}
	s.loginNext = now.Add(loginAttemptInterval)
	return true
}

// safeRedirectPath keeps post-login redirects on this site.
func safeRedirectPath(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	if strings.HasPrefix(u.Path, "/login") || strings.HasPrefix(u.Path, "/api/") {
		return "/"
	}
	return next
}

type loginPageData struct {
	Next     string
	Username string
}

func (s *WebServer) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.sessionFromRequest(r); ok {
		http.Redirect(w, r, safeRedirectPath(r.URL.Query().Get("next")), http.StatusSeeOther)
		return
	}
	data := s.basePageData(w, r, "login", "Login")
	data.Page = loginPageData{
		Next:     safeRedirectPath(r.URL.Query().Get("next")),
		Username: r.URL.Query().Get("username"),
	}
	s.renderStandalone(w, r, "login", data)
}

func (s *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		logger.Warn("parse login form", "error", err)
		s.renderErrorPage(w, r, http.StatusBadRequest, "Bad request")
		return
	}
	next := safeRedirectPath(r.PostFormValue("next"))
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	remember := r.PostFormValue("remember") != ""

	retry := "/login?next=" + url.QueryEscape(next)
	if !s.allowLoginAttempt(time.Now()) {
		setFlash(w, r, flashWarning, msgLoginRateLimited)
		http.Redirect(w, r, retry, http.StatusSeeOther)
		return
	}
	if username == "" || password == "" || !credentialsMatch(s.Config(), username, password) {
		logger.Warn("failed login attempt", "username", username, "remote", r.RemoteAddr)
		setFlash(w, r, flashDanger, msgLoginInvalid)
		http.Redirect(w, r, retry+"&username="+url.QueryEscape(username), http.StatusSeeOther)
		return
	}

	token, expires, err := s.sessions.issue(username, remember)
	if err != nil {
		logger.Error("issue session token", "error", err)
		s.renderErrorPage(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		cookie.Expires = expires
	}
	http.SetCookie(w, cookie)
	logger.Info("user logged in", "username", username, "remember", remember)
	setFlash(w, r, flashSuccess, msgLoginSuccess)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *WebServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := s.sessionFromRequest(r); ok {
		s.sessions.revoke(claims)
		s.consoles.drop(claims.ID)
		logger.Info("user logged out", "username", claims.Subject)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
	setFlash(w, r, flashInfo, msgLoggedOut)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Flash messages survive exactly one redirect in a short-lived cookie.

const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashWarning = "warning"
	flashDanger  = "danger"
)

type flashMessage struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

func setFlash(w http.ResponseWriter, r *http.Request, category, message string) {
	msgs := append(readFlashes(r), flashMessage{Category: category, Message: message})
	data, err := fastJSONMarshal(msgs)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(data),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

func readFlashes(r *http.Request) []flashMessage {
	cookie, err := r.Cookie(flashCookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}
	data, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var msgs []flashMessage
	if err := fastJSONUnmarshal(data, &msgs); err != nil {
		return nil
	}
	return msgs
}

// popFlashes returns pending messages and clears the cookie.
func popFlashes(w http.ResponseWriter, r *http.Request) []flashMessage {
	msgs := readFlashes(r)
	if _, err := r.Cookie(flashCookieName); err == nil {
		http.SetCookie(w, &http.Cookie{
			Name:     flashCookieName,
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return msgs
}
