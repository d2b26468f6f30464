// Package efileapi is the wire client for the court e-filing service.
// It maps every HTTP outcome onto the domain error taxonomy and does no retrying of its own.
package efileapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"eviction-tracker/efiling/internal/efile/domain"
)

const (
	defaultTimeout  = 30 * time.Second
	DefaultBaseURL  = "https://api.uslegalpro.com/v4"
	DefaultState    = "il"
	maxResponseBody = 4 << 20
)

// StatusFields is the field selector sent with every envelope lookup.
const StatusFields = "client_matter_number,jurisdiction,case_number,case_tracking_id,case_category,case_type," +
	"filings(file,status,stamped_document,reviewer_comment,status_reason)"

// Client talks to one state's e-filing endpoints.
type Client struct {
	BaseURL     string
	State       string
	ClientToken string
	HTTPClient  *http.Client
}

// NewClient returns a client for baseURL and state, using defaults for empty values.
func NewClient(baseURL, state, clientToken string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if state == "" {
		state = DefaultState
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		State:       state,
		ClientToken: clientToken,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

// Login is a successful authentication. ExpiresIn is zero when the service did not say.
type Login struct {
	Token     string
	ExpiresIn time.Duration
}

type response struct {
	MessageCode int             `json:"message_code"`
	Message     string          `json:"message"`
	Item        json.RawMessage `json:"item"`
}

type loginItem struct {
	AuthToken string `json:"auth_token"`
	ExpiresIn int64  `json:"expires_in"`
}

// Authenticate exchanges credentials for an auth token.
func (c *Client) Authenticate(ctx context.Context, username, password string) (Login, error) {
	body := map[string]any{"data": map[string]string{"username": username, "password": password}}
	resp, err := c.do(ctx, "authenticate", http.MethodPost, c.path("user", "authenticate"), body, http.Header{"clienttoken": {c.ClientToken}})
	if err != nil {
		var subErr *domain.SubmissionError
		if errors.As(err, &subErr) && (subErr.StatusCode == http.StatusUnauthorized || subErr.StatusCode == http.StatusForbidden || subErr.Code == strconv.Itoa(domain.CodeInvalidCredentials)) {
			return Login{}, &domain.AuthenticationError{MessageCode: domain.CodeInvalidCredentials, Message: subErr.Message}
		}
		return Login{}, err
	}
	var item loginItem
	if err := json.Unmarshal(resp.Item, &item); err != nil {
		return Login{}, &domain.ServerError{StatusCode: http.StatusOK, Message: "malformed login response"}
	}
	if item.AuthToken == "" {
		return Login{}, &domain.AuthenticationError{MessageCode: domain.CodeInvalidCredentials, Message: "no auth token in response"}
	}
	return Login{Token: item.AuthToken, ExpiresIn: time.Duration(item.ExpiresIn) * time.Second}, nil
}

// File submits sub and returns the envelope. A 2xx without an envelope id is a permanent SubmissionError.
func (c *Client) File(ctx context.Context, token string, sub domain.FilingSubmission) (domain.Envelope, error) {
	resp, err := c.do(ctx, "file", http.MethodPost, c.path("efile"), map[string]any{"data": sub}, authHeader(token))
	if err != nil {
		return domain.Envelope{}, tokenErr(err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(resp.Item, &env); err != nil || env.ID == "" {
		return domain.Envelope{}, &domain.SubmissionError{
			StatusCode: http.StatusOK,
			Code:       domain.CodeMissingEnvelopeID,
			Message:    "response carried no envelope id",
		}
	}
	return env, nil
}

// Envelope fetches the current state of an envelope.
func (c *Client) Envelope(ctx context.Context, token, envelopeID string) (domain.Envelope, error) {
	u := c.path("envelope", url.PathEscape(envelopeID)) + "?fields=" + StatusFields
	resp, err := c.do(ctx, "envelope", http.MethodGet, u, nil, authHeader(token))
	if err != nil {
		return domain.Envelope{}, tokenErr(err)
	}
	var env domain.Envelope
	if err := json.Unmarshal(resp.Item, &env); err != nil {
		return domain.Envelope{}, &domain.ServerError{StatusCode: http.StatusOK, Message: "malformed envelope response"}
	}
	if env.ID == "" {
		env.ID = envelopeID
	}
	return env, nil
}

func (c *Client) path(parts ...string) string {
	return c.BaseURL + "/" + c.State + "/" + strings.Join(parts, "/")
}

func authHeader(token string) http.Header {
	return http.Header{"authtoken": {token}}
}

// tokenErr turns an authenticated call's 401 or token-expired code into an AuthenticationError.
func tokenErr(err error) error {
	var subErr *domain.SubmissionError
	if errors.As(err, &subErr) && (subErr.StatusCode == http.StatusUnauthorized || subErr.Code == strconv.Itoa(domain.CodeTokenExpired)) {
		return &domain.AuthenticationError{MessageCode: domain.CodeTokenExpired, Message: subErr.Message}
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, u string, body any, header http.Header) (response, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("efileapi: encode %s request: %w", op, err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return response{}, fmt.Errorf("efileapi: %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return response{}, ctx.Err()
		}
		return response{}, &domain.NetworkError{Op: op, Err: err}
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return response{}, &domain.NetworkError{Op: op, Err: err}
	}

	var r response
	decodeErr := json.Unmarshal(raw, &r)
	msg := r.Message
	if msg == "" && decodeErr != nil {
		msg = truncate(strings.TrimSpace(string(raw)), 200)
	}

	switch {
	case res.StatusCode >= 500:
		return response{}, &domain.ServerError{StatusCode: res.StatusCode, Message: msg}
	case res.StatusCode >= 400:
		code := "http_" + strconv.Itoa(res.StatusCode)
		if decodeErr == nil && r.MessageCode != domain.CodeSuccess {
			code = strconv.Itoa(r.MessageCode)
		}
		return response{}, &domain.SubmissionError{
			StatusCode: res.StatusCode,
			Code:       code,
			Message:    msg,
			Transient:  res.StatusCode == http.StatusTooManyRequests || res.StatusCode == http.StatusLocked,
		}
	case res.StatusCode < 200 || res.StatusCode >= 300:
		return response{}, &domain.ServerError{StatusCode: res.StatusCode, Message: "unexpected status"}
	case decodeErr != nil:
		return response{}, &domain.ServerError{StatusCode: res.StatusCode, Message: "malformed response body"}
	case r.MessageCode != domain.CodeSuccess:
		return response{}, &domain.SubmissionError{StatusCode: res.StatusCode, Code: strconv.Itoa(r.MessageCode), Message: msg}
	}
	return r, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
