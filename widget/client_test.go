package widget

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-widget/handler"
	"chat-widget/internal/completion"
	"chat-widget/internal/domain"
	"chat-widget/internal/repository"
	"chat-widget/internal/usecase"
)

func TestClient_Chat(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody domain.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		_, _ = w.Write([]byte(`{"response":"Hi!","conversationId":"c1","timestamp":"2026-03-01T12:30:45.123Z"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "/api/", srv.Client())
	res, err := c.Chat(context.Background(), domain.ChatRequest{
		Message:        "Hello",
		ConversationID: "c1",
		Config:         &domain.ChatRequestConfig{SystemPrompt: "Be brief."},
	})
	require.NoError(t, err)
	require.Equal(t, "/api/chat", gotPath)
	require.Equal(t, "application/json", gotContentType)
	require.Equal(t, "Hello", gotBody.Message)
	require.Equal(t, "Be brief.", gotBody.Config.SystemPrompt)
	require.Equal(t, "Hi!", res.Response)
	require.Equal(t, "c1", res.ConversationID)
}

func TestClient_History(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"conversation":[{"role":"user","content":"Hi","timestamp":"2026-03-01T12:30:45.123Z"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", srv.Client())
	turns, err := c.History(context.Background(), "a/b")
	require.NoError(t, err)
	require.Equal(t, "/conversation/a%2Fb", gotPath)
	require.Len(t, turns, 1)
	require.Equal(t, domain.RoleUser, turns[0].Role)
}

func TestClient_StatusErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "server message", status: 400, body: `{"error":"Message is required"}`, wantMsg: "Message is required"},
		{name: "no body", status: 503, body: ``, wantMsg: "Error: 503 Service Unavailable."},
		{name: "non json", status: 502, body: `<html>bad gateway</html>`, wantMsg: "Error: 502 Bad Gateway."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "/api", srv.Client()).Chat(context.Background(), domain.ChatRequest{Message: "x"})
			require.Error(t, err)
			var se *StatusError
			require.ErrorAs(t, err, &se)
			require.Equal(t, tc.status, se.StatusCode)
			require.Equal(t, tc.wantMsg, se.Message)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "/api", nil).Chat(context.Background(), domain.ChatRequest{Message: "x"})
	require.Error(t, err)
	require.Equal(t, msgConnectivity, ClassifyError(err))
}

func TestController_AgainstBackend(t *testing.T) {
	store := repository.NewMemoryStore(repository.DefaultMaxTurns)
	gw := completion.New(nil, completion.WithFallbacks("Thanks for reaching out!"))
	svc, err := usecase.NewChatService(store, gw)
	require.NoError(t, err)
	h, err := handler.NewHandler(svc, handler.WithPrefix("/api"))
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	defer srv.Close()

	storage := NewMemoryStorage()
	first, err := New(Config{APIURL: srv.URL}, WithStorage(storage), WithAPI(NewClient(srv.URL, "/api", srv.Client())))
	require.NoError(t, err)
	require.NoError(t, first.Mount(context.Background()))
	first.Toggle()
	first.SetInput("Hello")
	require.True(t, first.Submit(context.Background()))
	first.Wait()

	msgs := first.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "Thanks for reaching out!", msgs[1].Content)

	// A reload with the same storage picks the conversation back up.
	second, err := New(Config{APIURL: srv.URL}, WithStorage(storage), WithAPI(NewClient(srv.URL, "/api", srv.Client())))
	require.NoError(t, err)
	require.NoError(t, second.Mount(context.Background()))
	require.Equal(t, first.ConversationID(), second.ConversationID())

	restored := second.Messages()
	require.Len(t, restored, 2)
	require.True(t, restored[0].IsUser)
	require.Equal(t, "Hello", restored[0].Content)
	require.Equal(t, "Thanks for reaching out!", restored[1].Content)
	require.WithinDuration(t, time.Now(), restored[0].Timestamp, time.Minute)
}
