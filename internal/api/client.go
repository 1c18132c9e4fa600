package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"splitbook/internal/models"

	"github.com/google/uuid"
)

// TokenSource supplies the current access token for request
// authorization. Implementations must return the live token on every
// call: a logout can invalidate the pair at any moment, so the client
// never caches it.
type TokenSource interface {
	AccessToken() string
}

// Client talks to the expense-splitting REST API. All methods are safe
// for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for request logging.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New creates a Client for the API rooted at baseURL (including the
// /api/ prefix). tokens may be nil for a client that only performs
// unauthenticated calls.
func New(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do performs one API call: marshals body, attaches authorization and a
// correlation id, and decodes the response into out (which may be nil).
// Every failure is normalized into a single error value per call.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse path %q: %w", path, err)
	}
	endpoint := c.baseURL.ResolveReference(ref).String()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	// Re-read the token per request rather than capturing it: a logout
	// may have cleared the pair since the last call.
	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed",
			"method", method, "path", path, "request_id", requestID, "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	c.log.Debug("request completed",
		"method", method,
		"path", path,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// --- Authentication ---

// Register creates a new account. It does not authenticate the session;
// callers log in separately.
func (c *Client) Register(ctx context.Context, username, email, password string) (models.User, error) {
	var user models.User
	err := c.do(ctx, http.MethodPost, "register/", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}, &user)
	return user, err
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, username, password string) (models.TokenPair, error) {
	var pair models.TokenPair
	err := c.do(ctx, http.MethodPost, "login/", map[string]string{
		"username": username,
		"password": password,
	}, &pair)
	return pair, err
}

// Logout revokes the refresh token server-side. The access token is sent
// as authorization; pair carries both tokens explicitly because the
// caller is in the middle of tearing the session down.
func (c *Client) Logout(ctx context.Context, pair models.TokenPair) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL.ResolveReference(&url.URL{Path: "logout/"}).String(),
		strings.NewReader(fmt.Sprintf(`{"refresh":%q}`, pair.Refresh)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+pair.Access)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST logout/: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(resp.Body)
		return parseError(resp.StatusCode, raw)
	}
	return nil
}

// --- Profile ---

// Profile fetches the authenticated user's student profile.
func (c *Client) Profile(ctx context.Context) (models.Profile, error) {
	var profile models.Profile
	err := c.do(ctx, http.MethodGet, "profile/", nil, &profile)
	return profile, err
}

// UpdateProfile applies a partial update and returns the new profile.
func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.Profile, error) {
	var profile models.Profile
	err := c.do(ctx, http.MethodPatch, "profile/update/", update, &profile)
	return profile, err
}

// --- Friends ---

// Friends lists the authenticated user's friends in server order.
func (c *Client) Friends(ctx context.Context) ([]models.Friend, error) {
	var friends []models.Friend
	err := c.do(ctx, http.MethodGet, "friends/", nil, &friends)
	return friends, err
}

// AddFriend adds a friend by bare username. The server is the sole
// authority on existence, duplicates and self-friendship; any rejection
// comes back as a normal *Error. No friend record is returned.
func (c *Client) AddFriend(ctx context.Context, username string) error {
	return c.do(ctx, http.MethodPost, "friends/add/", map[string]string{
		"username": username,
	}, nil)
}

// RemoveFriend removes a friend by profile id.
func (c *Client) RemoveFriend(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("friends/remove/%d/", id), nil, nil)
}

// --- Expenses ---

// Expenses lists expenses where the user is payer or payee, newest first.
func (c *Client) Expenses(ctx context.Context) ([]models.Expense, error) {
	var expenses []models.Expense
	err := c.do(ctx, http.MethodGet, "expenses/", nil, &expenses)
	return expenses, err
}

// CreateExpense creates an expense and returns the canonical record.
func (c *Client) CreateExpense(ctx context.Context, payload models.ExpenseCreate) (models.Expense, error) {
	var expense models.Expense
	err := c.do(ctx, http.MethodPost, "expenses/", payload, &expense)
	return expense, err
}

// UpdateExpense replaces an expense and returns the canonical record.
func (c *Client) UpdateExpense(ctx context.Context, id int64, payload models.ExpenseCreate) (models.Expense, error) {
	var expense models.Expense
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("expenses/%d/", id), payload, &expense)
	return expense, err
}

// DeleteExpense deletes an expense by id. Its shares are not retracted
// client-side.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("expenses/%d/", id), nil, nil)
}

// --- Shares ---

// Shares lists the shares recorded under one expense.
func (c *Client) Shares(ctx context.Context, expenseID int64) ([]models.Share, error) {
	var shares []models.Share
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("expenses/%d/shares/", expenseID), nil, &shares)
	return shares, err
}

// CreateShare records one payee's owed portion under an expense.
func (c *Client) CreateShare(ctx context.Context, expenseID int64, payload models.ShareCreate) (models.Share, error) {
	var share models.Share
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("expenses/%d/shares/", expenseID), payload, &share)
	return share, err
}

// SharedExpenses lists all shares visible to the user across expenses.
func (c *Client) SharedExpenses(ctx context.Context) ([]models.Share, error) {
	var shares []models.Share
	err := c.do(ctx, http.MethodGet, "share-expenses/", nil, &shares)
	return shares, err
}

// UpdateShare patches one share record and returns the canonical record.
func (c *Client) UpdateShare(ctx context.Context, id int64, payload models.ShareCreate) (models.Share, error) {
	var share models.Share
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("share-expenses/%d/", id), payload, &share)
	return share, err
}

// DeleteShare deletes one share record.
func (c *Client) DeleteShare(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("share-expenses/%d/", id), nil, nil)
}
