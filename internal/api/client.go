// Package api is the gateway to the remote Splitwiser service. Each remote
// resource gets one typed operation; every failure comes back as *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitwiser-client/internal/metrics"
	"github.com/mmynk/splitwiser-client/internal/middleware"
	"github.com/mmynk/splitwiser-client/internal/models"
)

// Operation names, used for metrics labels and default messages.
const (
	OpRegister         = "register"
	OpLogin            = "login"
	OpFetchGroups      = "fetch_groups"
	OpCreateGroup      = "create_group"
	OpFetchGroupDetail = "fetch_group_detail"
	OpFetchExpenses    = "fetch_expenses"
	OpCreateExpense    = "create_expense"
)

var defaultMessages = map[string]string{
	OpRegister:         "An error occurred.",
	OpLogin:            "An error occurred.",
	OpFetchGroups:      "Could not fetch groups.",
	OpCreateGroup:      "Failed to create group.",
	OpFetchGroupDetail: "Could not load group details.",
	OpFetchExpenses:    "Could not load expenses.",
	OpCreateExpense:    "Failed to add expense.",
}

const malformedMessage = "Received an unexpected response from the server."

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// CredentialSource supplies the bearer token for credentialed calls.
type CredentialSource interface {
	Credential() (string, bool)
}

// Client calls the remote API. It does not retry and does not cache.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	creds   CredentialSource
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client. Its transport is used as-is.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger used for call logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithTimeout sets the per-call timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a gateway for the service at baseURL.
func New(baseURL string, creds CredentialSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid api url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid api url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL: u,
		creds:   creds,
		logger:  slog.Default(),
	}
	c.http = &http.Client{Timeout: 15 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Transport == nil {
		c.http.Transport = &middleware.LoggingTransport{Logger: c.logger}
	}
	return c, nil
}

// Register creates an account. The returned user record is ignored.
func (c *Client) Register(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	return c.do(ctx, OpRegister, http.MethodPost, "/register", formBody(form), false, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	form := url.Values{"username": {username}, "password": {password}}
	var resp tokenResponse
	if err := c.do(ctx, OpLogin, http.MethodPost, "/token", formBody(form), false, &resp); err != nil {
		return "", err
	}
	if err := resp.validate(); err != nil {
		return "", c.malformed(OpLogin, err)
	}
	return resp.AccessToken, nil
}

// FetchGroups lists the caller's groups.
func (c *Client) FetchGroups(ctx context.Context) ([]models.Group, error) {
	var resp []groupResponse
	if err := c.do(ctx, OpFetchGroups, http.MethodGet, "/groups", nil, true, &resp); err != nil {
		return nil, err
	}
	groups := make([]models.Group, 0, len(resp))
	for _, g := range resp {
		if err := g.validate(true); err != nil {
			return nil, c.malformed(OpFetchGroups, err)
		}
		groups = append(groups, g.model())
	}
	return groups, nil
}

// CreateGroup creates a group with the given members.
func (c *Client) CreateGroup(ctx context.Context, name string, members []string) (models.Group, error) {
	body, err := jsonBody(createGroupRequest{Name: name, Members: members})
	if err != nil {
		return models.Group{}, c.failure(OpCreateGroup, 0, "", err)
	}
	var resp groupResponse
	if err := c.do(ctx, OpCreateGroup, http.MethodPost, "/groups", body, true, &resp); err != nil {
		return models.Group{}, err
	}
	if err := resp.validate(true); err != nil {
		return models.Group{}, c.malformed(OpCreateGroup, err)
	}
	return resp.model(), nil
}

// FetchGroupDetail returns the name and members of one group. The returned
// Group's ID is groupID.
func (c *Client) FetchGroupDetail(ctx context.Context, groupID string) (models.Group, error) {
	var resp groupResponse
	if err := c.do(ctx, OpFetchGroupDetail, http.MethodGet, groupPath(groupID), nil, true, &resp); err != nil {
		return models.Group{}, err
	}
	if err := resp.validate(false); err != nil {
		return models.Group{}, c.malformed(OpFetchGroupDetail, err)
	}
	group := resp.model()
	group.ID = groupID
	return group, nil
}

// FetchExpenses returns a group's expenses in server order.
func (c *Client) FetchExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	var resp []expenseResponse
	if err := c.do(ctx, OpFetchExpenses, http.MethodGet, groupPath(groupID)+"/expenses", nil, true, &resp); err != nil {
		return nil, err
	}
	expenses := make([]models.Expense, 0, len(resp))
	for _, e := range resp {
		if err := e.validate(); err != nil {
			return nil, c.malformed(OpFetchExpenses, err)
		}
		expenses = append(expenses, e.model())
	}
	return expenses, nil
}

// CreateExpense records an expense in a group.
func (c *Client) CreateExpense(ctx context.Context, groupID string, expense models.NewExpense) (models.Expense, error) {
	body, err := jsonBody(newExpenseRequest(expense))
	if err != nil {
		return models.Expense{}, c.failure(OpCreateExpense, 0, "", err)
	}
	var resp expenseResponse
	if err := c.do(ctx, OpCreateExpense, http.MethodPost, groupPath(groupID)+"/expenses", body, true, &resp); err != nil {
		return models.Expense{}, err
	}
	if err := resp.validate(); err != nil {
		return models.Expense{}, c.malformed(OpCreateExpense, err)
	}
	return resp.model(), nil
}

type requestBody struct {
	contentType string
	data        []byte
}

func formBody(values url.Values) *requestBody {
	return &requestBody{contentType: "application/x-www-form-urlencoded", data: []byte(values.Encode())}
}

func jsonBody(v any) (*requestBody, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return &requestBody{contentType: "application/json", data: data}, nil
}

func groupPath(groupID string) string {
	return "/groups/" + url.PathEscape(groupID)
}

// do sends one request and decodes a success body into out (when non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, body *requestBody, credentialed bool, out any) error {
	start := time.Now()
	err := c.send(ctx, op, method, path, body, credentialed, out)
	metrics.APIRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	outcome := "ok"
	switch {
	case errors.Is(err, ErrUnauthorized):
		outcome = "unauthorized"
	case err != nil:
		outcome = "error"
	}
	metrics.APIRequests.WithLabelValues(op, outcome).Inc()
	return err
}

func (c *Client) send(ctx context.Context, op, method, path string, body *requestBody, credentialed bool, out any) error {
	var token string
	if credentialed {
		var ok bool
		token, ok = c.creds.Credential()
		if !ok {
			return c.failure(op, 0, "", ErrNoCredential)
		}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return c.failure(op, 0, "", fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(middleware.RequestIDHeader, uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	if credentialed {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.failure(op, 0, "", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return c.failure(op, resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp errorResponse
		detail := ""
		if json.Unmarshal(data, &errResp) == nil {
			detail = errResp.message()
		}
		return c.failure(op, resp.StatusCode, detail, statusCause(resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return c.malformed(op, err)
	}
	return nil
}

func (c *Client) failure(op string, status int, detail string, cause error) *Error {
	msg := detail
	if msg == "" {
		msg = defaultMessages[op]
	}
	return &Error{Op: op, Status: status, Message: msg, Err: cause}
}

func (c *Client) malformed(op string, cause error) *Error {
	c.logger.Warn("Malformed API response", "operation", op, "error", cause)
	return &Error{Op: op, Message: malformedMessage, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, cause)}
}
