// Package payload uploads records to the storage API over a challenge
// authenticated session.
package payload

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"blackwatch/internal/config"
	"blackwatch/internal/logger"
	"blackwatch/pkg/utils"
)

// API routes and headers.
const (
	ChallengeInitPath   = "/auth/challenge/init"
	ChallengeVerifyPath = "/auth/challenge/verify"
	LogoutPath          = "/auth/logout"
	SessionHeader       = "X-Session-Id"

	maxResponseSize = 10 << 20
)

// Session errors.
var (
	ErrUnexpectedStatusCode = errors.New("unexpected status code")
	ErrInvalidEndpoint      = errors.New("invalid API endpoint")
	ErrLoginFailed          = errors.New("login failed")
	ErrNoSessionID          = errors.New("session id missing from verify response")
	ErrInvalidNonce         = errors.New("invalid challenge nonce")
)

// Client sends JSON bodies to the storage API.
type Client interface {
	Login(ctx context.Context) error
	Post(ctx context.Context, path string, body interface{}) (*Response, error)
	Logout(ctx context.Context) error
}

// Response is the status and body of a finished request.
type Response struct {
	StatusCode int
	Body       []byte
}

// SessionClient implements Client. It logs in lazily, sends the session id
// on every call and logs in again once when the server answers 401.
type SessionClient struct {
	httpClient *http.Client
	headers    *utils.HTTPHelper
	retry      config.RetryPolicy
	endpoint   string
	clientID   string
	secret     string
	logger     *logger.Logger

	loginMu       sync.Mutex
	mu            sync.RWMutex
	authenticated bool
	sessionID     string
}

// NewSessionClient creates a client for the API section of the config.
func NewSessionClient(cfg *config.APIConfig, retry config.RetryPolicy, log *logger.Logger) (*SessionClient, error) {
	headers := utils.NewHTTPHelper(cfg.UserAgent)
	if !headers.IsValidURL(cfg.Endpoint) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEndpoint, cfg.Endpoint)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	if log == nil {
		log = logger.NewLogger("info")
	}

	return &SessionClient{
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
			Jar:     jar,
		},
		headers:  headers,
		retry:    retry,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		clientID: cfg.ClientID,
		secret:   cfg.ClientSecret,
		logger:   log,
	}, nil
}

// Sign returns the hex HMAC-SHA256 of the base64 decoded nonce.
func Sign(secret, nonceB64 string) (string, error) {
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidNonce, err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(nonce)

	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Authenticated reports whether a session is currently held.
func (c *SessionClient) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.authenticated
}

func (c *SessionClient) setSession(authenticated bool, sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.authenticated = authenticated
	if sessionID != "" || !authenticated {
		c.sessionID = sessionID
	}
}

func (c *SessionClient) session() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.sessionID
}

// Login runs the challenge handshake. A 409 on init means the client
// already holds a session and counts as success.
func (c *SessionClient) Login(ctx context.Context) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	return c.login(ctx)
}

func (c *SessionClient) login(ctx context.Context) error {
	resp, err := c.do(ctx, ChallengeInitPath, ChallengeInitRequest{ClientID: c.clientID})
	if err != nil {
		return fmt.Errorf("challenge init: %w", err)
	}

	if resp.StatusCode == http.StatusConflict {
		c.logger.Debug("challenge already initialized, reusing session", "client", c.clientID)
		c.setSession(true, "")

		return nil
	}

	if resp.StatusCode != http.StatusOK {
		c.setSession(false, "")
		return fmt.Errorf("%w: challenge init returned %d: %s", ErrLoginFailed, resp.StatusCode, resp.Body)
	}

	var challenge ChallengeInitResponse
	if err := json.Unmarshal(resp.Body, &challenge); err != nil {
		return fmt.Errorf("failed to parse challenge: %w", err)
	}

	signature, err := Sign(c.secret, challenge.Nonce)
	if err != nil {
		return err
	}

	resp, err = c.do(ctx, ChallengeVerifyPath, VerifyRequest{
		ClientID:    c.clientID,
		ChallengeID: challenge.ChallengeID,
		Signature:   signature,
	})
	if err != nil {
		return fmt.Errorf("challenge verify: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.setSession(false, "")
		return fmt.Errorf("%w: verify returned %d: %s", ErrLoginFailed, resp.StatusCode, resp.Body)
	}

	var verified VerifyResponse
	if err := json.Unmarshal(resp.Body, &verified); err != nil {
		return fmt.Errorf("failed to parse verify response: %w", err)
	}

	if verified.SessionID == "" {
		c.setSession(false, "")
		return ErrNoSessionID
	}

	c.setSession(true, verified.SessionID)
	c.logger.Info("session login succeeded", "client", c.clientID)

	return nil
}

// ensureLogin logs in unless another caller already did.
func (c *SessionClient) ensureLogin(ctx context.Context) error {
	if c.Authenticated() {
		return nil
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	if c.Authenticated() {
		return nil
	}

	return c.login(ctx)
}

// relogin replaces the session that produced a 401.
func (c *SessionClient) relogin(ctx context.Context, stale string) error {
	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	if c.Authenticated() && c.session() != stale {
		return nil
	}

	c.setSession(false, "")

	return c.login(ctx)
}

// Post sends body to path. Non 2xx answers return the response together
// with an error wrapping ErrUnexpectedStatusCode.
func (c *SessionClient) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	if err := c.ensureLogin(ctx); err != nil {
		return nil, err
	}

	stale := c.session()

	resp, err := c.do(ctx, path, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Warn("session expired, logging in again", "path", path)

		if err := c.relogin(ctx, stale); err != nil {
			return resp, err
		}

		resp, err = c.do(ctx, path, body)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatusCode, resp.StatusCode, resp.Body)
	}

	return resp, nil
}

// Logout ends the session. The local session is dropped even when the
// request fails.
func (c *SessionClient) Logout(ctx context.Context) error {
	defer c.setSession(false, "")

	resp, err := c.do(ctx, LogoutPath, nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: logout returned %d", ErrUnexpectedStatusCode, resp.StatusCode)
	}

	return nil
}

// do sends one JSON POST, retrying transient statuses with backoff.
func (c *SessionClient) do(ctx context.Context, path string, body interface{}) (*Response, error) {
	var payload []byte

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		payload = data
	}

	attempts := c.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var (
		resp *Response
		err  error
	)

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleepContext(ctx, c.retry.GetRetryDelay(attempt-1)); err != nil {
				return nil, err
			}
		}

		resp, err = c.send(ctx, path, payload)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			c.logger.Debug("request failed", "path", path, "attempt", attempt, "error", err)

			continue
		}

		if !isTransient(resp.StatusCode) {
			return resp, nil
		}

		c.logger.Debug("transient status", "path", path, "attempt", attempt, "status", resp.StatusCode)
	}

	if err != nil {
		return nil, fmt.Errorf("request to %s failed after %d attempts: %w", path, attempts, err)
	}

	return resp, nil
}

func (c *SessionClient) send(ctx context.Context, path string, payload []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	custom := map[string]string{}
	if id := c.session(); id != "" {
		custom[SessionHeader] = id
	}

	req.Header = c.headers.BuildHeaders(custom)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: httpResp.StatusCode, Body: data}, nil
}

func isTransient(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
