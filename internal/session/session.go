// Package session manages the authentication token pair and its durable
// storage. The session is the only writer of the pair; every other
// component reads the live token through the api.TokenSource interface.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"splitbook/internal/api"
	"splitbook/internal/credstore"
	"splitbook/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Store holds the session token pair. It satisfies api.TokenSource so
// the API client re-reads the access token on every request.
type Store struct {
	mu    sync.Mutex
	pair  models.TokenPair
	creds *credstore.Store

	client *api.Client
	log    *slog.Logger
}

// New loads any persisted token pair from creds and derives the initial
// logged-in state from it. No network call is made: a page reload (or
// here, a new process) must not force re-login.
func New(creds *credstore.Store, log *slog.Logger) (*Store, error) {
	pair, err := creds.Tokens()
	if err != nil {
		return nil, fmt.Errorf("load stored tokens: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{pair: pair, creds: creds, log: log}, nil
}

// SetClient attaches the API client used for login, signup and logout.
// Called once during wiring; the client itself holds the store as its
// token source.
func (s *Store) SetClient(client *api.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = client
}

// AccessToken returns the current access token, empty when logged out.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pair.Access
}

// IsLoggedIn reports whether an access token is present. It is derived
// state, never stored separately.
func (s *Store) IsLoggedIn() bool {
	return s.AccessToken() != ""
}

// CurrentUserID returns the user id carried in the access token's
// claims. The token is decoded without verification: the client never
// holds the signing key and the server re-checks every request anyway.
func (s *Store) CurrentUserID() (int64, bool) {
	token := s.AccessToken()
	if token == "" {
		return 0, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return 0, false
	}
	id, ok := claims["user_id"].(float64)
	if !ok {
		return 0, false
	}
	return int64(id), true
}

// Signup registers a new account. It does not authenticate: the caller
// logs in separately.
func (s *Store) Signup(ctx context.Context, username, email, password string) (models.User, error) {
	return s.client.Register(ctx, username, email, password)
}

// Login exchanges credentials for a token pair and persists it. On
// failure the prior session state is left untouched.
func (s *Store) Login(ctx context.Context, username, password string) error {
	pair, err := s.client.Login(ctx, username, password)
	if err != nil {
		return err
	}

	if err := s.creds.SaveTokens(pair); err != nil {
		return fmt.Errorf("persist tokens: %w", err)
	}

	s.mu.Lock()
	s.pair = pair
	s.mu.Unlock()
	return nil
}

// Logout revokes the refresh token when one is present, then clears the
// stored pair unconditionally. A failed revoke call must never leave the
// client believing itself logged in, so the local cleanup happens
// regardless of the network outcome; any revoke error is returned for
// reporting only.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	pair := s.pair
	s.pair = models.TokenPair{}
	s.mu.Unlock()

	var revokeErr error
	if pair.Refresh != "" {
		if err := s.client.Logout(ctx, pair); err != nil {
			s.log.Warn("logout revoke failed, clearing tokens anyway", "err", err)
			revokeErr = err
		}
	}

	if err := s.creds.Clear(); err != nil {
		return fmt.Errorf("clear stored tokens: %w", err)
	}
	return revokeErr
}
