package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chat-widget/internal/domain"
	"chat-widget/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"

	msgMessageRequired = "Message is required"
	msgInvalidBody     = "Invalid request body"
	msgInternal        = "Sorry, I encountered an error. Please try again."
	msgNotFound        = "Not found"
	msgMethod          = "Method not allowed"
)

// ChatUseCase is the application surface exposed over HTTP.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	History(ctx context.Context, conversationID string) ([]domain.Turn, error)
}

// Handler serves the chat API both as an API Gateway proxy integration and as a
// plain net/http handler.
type Handler struct {
	uc     ChatUseCase
	prefix string
	mode   func() string
	static http.Handler
	log    zerolog.Logger
	now    func() time.Time
}

type Option func(*Handler)

// WithPrefix mounts the API under prefix, e.g. "/api".
func WithPrefix(prefix string) Option {
	return func(h *Handler) {
		h.prefix = normalizePrefix(prefix)
	}
}

// WithMode reports the completion mode on the health probe.
func WithMode(mode func() string) Option {
	return func(h *Handler) {
		h.mode = mode
	}
}

// WithStatic serves requests outside the API prefix from static, e.g. the
// widget bundle. Only used by ServeHTTP.
func WithStatic(static http.Handler) Option {
	return func(h *Handler) {
		h.static = static
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *Handler) {
		h.log = l
	}
}

func NewHandler(uc ChatUseCase, opts ...Option) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	h := &Handler{
		uc:  uc,
		log: zerolog.Nop(),
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Handle routes one API Gateway proxy request. It never returns an error;
// failures are encoded in the response.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	start := time.Now()
	correlationID := headerValue(req.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	log := h.log.With().Str("correlation_id", correlationID).Logger()
	ctx = log.WithContext(ctx)

	resp := h.route(ctx, req)
	resp.Headers = withDefaultHeaders(resp.Headers, correlationID)

	log.Info().
		Str("method", req.HTTPMethod).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request handled")
	return resp, nil
}

func (h *Handler) route(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	method := strings.ToUpper(req.HTTPMethod)
	if method == http.MethodOptions {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}
	}

	path, ok := h.apiPath(req.Path)
	if !ok {
		return errorResponse(http.StatusNotFound, msgNotFound)
	}

	switch {
	case path == "/chat":
		if method != http.MethodPost {
			return errorResponse(http.StatusMethodNotAllowed, msgMethod)
		}
		return h.chat(ctx, req)
	case path == "/health":
		if method != http.MethodGet {
			return errorResponse(http.StatusMethodNotAllowed, msgMethod)
		}
		return h.health()
	case strings.HasPrefix(path, "/conversation/"):
		if method != http.MethodGet {
			return errorResponse(http.StatusMethodNotAllowed, msgMethod)
		}
		id := strings.TrimPrefix(path, "/conversation/")
		if id == "" || strings.Contains(id, "/") {
			return errorResponse(http.StatusNotFound, msgNotFound)
		}
		return h.history(ctx, id)
	default:
		return errorResponse(http.StatusNotFound, msgNotFound)
	}
}

func (h *Handler) chat(ctx context.Context, req events.APIGatewayProxyRequest) events.APIGatewayProxyResponse {
	body, err := requestBody(req)
	if err != nil {
		return errorResponse(http.StatusBadRequest, msgInvalidBody)
	}
	var in domain.ChatRequest
	if err := json.Unmarshal(body, &in); err != nil {
		return errorResponse(http.StatusBadRequest, msgInvalidBody)
	}

	chatIn := usecase.ChatInput{Message: in.Message, ConversationID: in.ConversationID}
	if in.Config != nil {
		chatIn.SystemPrompt = in.Config.SystemPrompt
	}

	out, err := h.uc.Chat(ctx, chatIn)
	if err != nil {
		return h.useCaseError(ctx, err)
	}
	return jsonResponse(http.StatusOK, domain.ChatResponse{
		Response:       out.Response,
		ConversationID: out.ConversationID,
		Timestamp:      out.Timestamp.UTC().Format(domain.TimestampLayout),
	})
}

func (h *Handler) history(ctx context.Context, conversationID string) events.APIGatewayProxyResponse {
	turns, err := h.uc.History(ctx, conversationID)
	if err != nil {
		return h.useCaseError(ctx, err)
	}
	if turns == nil {
		turns = []domain.Turn{}
	}
	return jsonResponse(http.StatusOK, domain.HistoryResponse{Conversation: turns})
}

func (h *Handler) health() events.APIGatewayProxyResponse {
	out := domain.HealthResponse{
		Status:    "healthy",
		Timestamp: h.now().Format(domain.TimestampLayout),
	}
	if h.mode != nil {
		out.Mode = h.mode()
	}
	return jsonResponse(http.StatusOK, out)
}

func (h *Handler) useCaseError(ctx context.Context, err error) events.APIGatewayProxyResponse {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) && ucErr.Code == usecase.ErrorInvalidInput {
		return errorResponse(http.StatusBadRequest, msgMessageRequired)
	}
	zerolog.Ctx(ctx).Error().Err(err).Msg("chat request failed")
	return errorResponse(http.StatusInternalServerError, msgInternal)
}

// apiPath strips the configured prefix. ok is false for paths outside it.
func (h *Handler) apiPath(path string) (string, bool) {
	if path == "" {
		path = "/"
	}
	if h.prefix == "" {
		return path, true
	}
	if path == h.prefix {
		return "/", true
	}
	if !strings.HasPrefix(path, h.prefix+"/") {
		return "", false
	}
	return strings.TrimPrefix(path, h.prefix), true
}

func requestBody(req events.APIGatewayProxyRequest) ([]byte, error) {
	if !req.IsBase64Encoded {
		return []byte(req.Body), nil
	}
	return base64.StdEncoding.DecodeString(req.Body)
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(v)
	if err != nil {
		return errorResponse(http.StatusInternalServerError, msgInternal)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}
}

func errorResponse(status int, message string) events.APIGatewayProxyResponse {
	raw, _ := json.Marshal(domain.ErrorResponse{Error: message})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(raw),
	}
}

// withDefaultHeaders adds CORS headers allowing any embedding origin.
func withDefaultHeaders(headers map[string]string, correlationID string) map[string]string {
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Access-Control-Allow-Origin"] = "*"
	headers["Access-Control-Allow-Methods"] = "GET, POST, OPTIONS"
	headers["Access-Control-Allow-Headers"] = "Content-Type, Authorization, X-API-Key, X-Correlation-Id"
	headers[headerCorrelationID] = correlationID
	return headers
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.TrimRight(prefix, "/")
	if prefix != "" && !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}
