package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"

	"chat-widget/internal/domain"
)

// API is the backend surface the controller talks to.
type API interface {
	Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error)
	History(ctx context.Context, conversationID string) ([]domain.Turn, error)
}

// StatusError is returned for non-2xx responses. Message is the server's
// error text, or a generic description of the status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("widget: unexpected status %d: %s", e.StatusCode, e.Message)
}

// Client is an HTTP implementation of API.
type Client struct {
	base       string
	httpClient *http.Client
}

// NewClient targets the API mounted at apiURL+prefix. A nil httpClient uses a
// pooled client with a 30s timeout.
func NewClient(apiURL, prefix string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = cleanhttp.DefaultPooledClient()
		httpClient.Timeout = 30 * time.Second
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	base := strings.TrimRight(apiURL, "/")
	if prefix != "" {
		base += "/" + prefix
	}
	return &Client{base: base, httpClient: httpClient}
}

func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return domain.ChatResponse{}, errors.Wrap(err, "widget: marshal chat request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/chat", bytes.NewReader(body))
	if err != nil {
		return domain.ChatResponse{}, errors.Wrap(err, "widget: create chat request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out domain.ChatResponse
	if err := c.do(httpReq, &out); err != nil {
		return domain.ChatResponse{}, err
	}
	return out, nil
}

func (c *Client) History(ctx context.Context, conversationID string) ([]domain.Turn, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/conversation/"+url.PathEscape(conversationID), nil)
	if err != nil {
		return nil, errors.Wrap(err, "widget: create history request")
	}
	var out domain.HistoryResponse
	if err := c.do(httpReq, &out); err != nil {
		return nil, err
	}
	return out.Conversation, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "widget: request failed")
	}
	defer func() { _ = res.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "widget: read response body")
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return statusError(res.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrap(err, "widget: decode response")
	}
	return nil
}

func statusError(code int, body []byte) *StatusError {
	msg := fmt.Sprintf("Error: %d %s.", code, http.StatusText(code))
	var payload domain.ErrorResponse
	if json.Unmarshal(body, &payload) == nil && strings.TrimSpace(payload.Error) != "" {
		msg = payload.Error
	}
	return &StatusError{StatusCode: code, Message: msg}
}
