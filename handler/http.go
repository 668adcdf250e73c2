package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

const maxBodyBytes = 1 << 20

// ServeHTTP adapts net/http requests to Handle so both deployment modes share
// one routing and encoding path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.static != nil && r.Method != http.MethodOptions {
		if _, ok := h.apiPath(r.URL.Path); !ok || h.prefix == "" && isStaticPath(r.URL.Path) {
			h.static.ServeHTTP(w, r)
			return
		}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	req := events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               flattenHeaders(r.Header),
		QueryStringParameters: flattenQuery(r.URL.Query()),
		Body:                  string(body),
	}

	resp, _ := h.Handle(r.Context(), req)
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = io.WriteString(w, resp.Body)
	}
}

// isStaticPath reports asset paths when the API is mounted at the root.
func isStaticPath(path string) bool {
	return strings.HasSuffix(path, ".js") || strings.HasSuffix(path, ".css") || strings.HasSuffix(path, ".html")
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[k] = strings.Join(vs, ",")
	}
	return out
}

func flattenQuery(q map[string][]string) map[string]string {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k, vs := range q {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}
