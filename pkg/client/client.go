package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go-invoice/pkg/token"
	"go-invoice/pkg/tokenstore"
)

const (
	DefaultTimeout        = 30 * time.Second
	DefaultRefreshTimeout = 15 * time.Second
	maxResponseBytes      = 32 << 20
)

type Config struct {
	// BaseURL includes the API prefix, e.g. http://localhost:5000/api.
	BaseURL        string
	Store          tokenstore.Store
	HTTPClient     *http.Client
	Timeout        time.Duration
	RefreshTimeout time.Duration
	Policy         token.Policy
	Logger         *slog.Logger
}

// Client is the authenticated request gateway.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	policy    token.Policy
	logger    *slog.Logger
	session   *Session
	refresher *Refresher
}

// Request describes one API call. Auth marks calls that need a bearer token.
type Request struct {
	Method string
	Path   string
	Body   any
	Auth   bool
	Accept string
}

type Response struct {
	Status      int
	Header      http.Header
	Body        []byte
	ContentType string
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details string `json:"details"`
	} `json:"error"`
}

// Decode unmarshals the data field of a JSON envelope into v.
func (r *Response) Decode(v any) error {
	var env envelope
	if err := json.Unmarshal(r.Body, &env); err != nil {
		return &Error{Kind: KindUnknown, Status: r.Status, Message: "malformed response body", Err: err}
	}
	if len(env.Data) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return &Error{Kind: KindUnknown, Status: r.Status, Message: "unexpected response shape", Err: err}
	}
	return nil
}

func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("token store is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	refreshTimeout := cfg.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}
	policy := cfg.Policy
	if policy.Now == nil {
		policy.Now = time.Now
	}
	if policy.Buffer <= 0 {
		policy.Buffer = token.DefaultRefreshBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		baseURL: baseURL,
		http:    httpClient,
		timeout: timeout,
		policy:  policy,
		logger:  logger,
		session: NewSession(cfg.Store, policy, logger),
	}
	c.refresher = NewRefresher(c.session, c.exchangeRefresh, policy, refreshTimeout, logger)
	c.session.Restore()

	return c, nil
}

func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) Refresher() *Refresher {
	return c.refresher
}

// Do sends req. For authenticated requests a token inside the refresh
// window is exchanged first; if that fails the session is ended and the
// request is never sent. A 401 ends the session without a second refresh.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	accessToken, generation := c.session.current()

	if req.Auth && accessToken != "" && c.policy.NeedsRefresh(accessToken) {
		fresh, err := c.refresher.Refresh(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, transportError(ctx, ctxErr)
			}
			if c.session.logoutIf(generation, ErrSessionExpired) {
				c.logger.Warn("session expired; refresh failed", "path", req.Path, "error", err)
			} else {
				c.logger.Debug("refresh failure belongs to a replaced session", "path", req.Path, "error", err)
			}
			return nil, &Error{
				Kind:    KindAuth,
				Status:  http.StatusUnauthorized,
				Message: ErrSessionExpired.Error(),
				Err:     fmt.Errorf("%w: %w", ErrSessionExpired, err),
			}
		}
		accessToken = fresh
	}

	if !req.Auth {
		accessToken = ""
	}

	resp, err := c.send(ctx, req, accessToken)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized && req.Auth {
		if c.session.logoutIf(generation, ErrUnauthorized) {
			c.logger.Warn("server rejected credential", "path", req.Path)
		}
		apiErr := responseError(resp)
		apiErr.Kind = KindAuth
		apiErr.Err = ErrUnauthorized
		return nil, apiErr
	}

	if resp.Status >= http.StatusBadRequest {
		return nil, responseError(resp)
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, req Request, accessToken string) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Kind: KindValidation, Message: "cannot encode request body", Err: err}
		}
		body = bytes.NewReader(data)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: "cannot build request", Err: err}
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	accept := req.Accept
	if accept == "" {
		accept = "application/json"
	}
	httpReq.Header.Set("Accept", accept)
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}

	started := time.Now()
	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		classified := transportError(ctx, err)
		c.logger.Debug("request failed", "method", req.Method, "path", req.Path, "kind", classified.Kind.String(), "error", err)
		return nil, classified
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(ctx, err)
	}

	c.logger.Debug("request",
		"method", req.Method,
		"path", req.Path,
		"status", httpResp.StatusCode,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return &Response{
		Status:      httpResp.StatusCode,
		Header:      httpResp.Header,
		Body:        data,
		ContentType: httpResp.Header.Get("Content-Type"),
	}, nil
}

// exchangeRefresh talks to the server directly; it must not pass through
// Do, whose 401 handling would end the session mid-refresh.
func (c *Client) exchangeRefresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	resp, err := c.send(ctx, Request{
		Method: http.MethodPost,
		Path:   "/auth/refresh",
		Body:   map[string]string{"refreshToken": refreshToken},
	}, "")
	if err != nil {
		return TokenPair{}, err
	}
	if resp.Status >= http.StatusBadRequest {
		return TokenPair{}, responseError(resp)
	}

	var out struct {
		Token        string `json:"token"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := resp.Decode(&out); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Token: out.Token, RefreshToken: out.RefreshToken}, nil
}

func responseError(resp *Response) *Error {
	e := &Error{
		Kind:   kindForStatus(resp.Status),
		Status: resp.Status,
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err == nil {
		if env.Error != nil {
			e.Code = env.Error.Code
			e.Message = env.Error.Message
			e.Details = env.Error.Details
		} else if env.Message != "" {
			e.Message = env.Message
		}
	}
	if e.Message == "" {
		e.Message = fmt.Sprintf("HTTP error! status: %d", resp.Status)
	}
	return e
}
