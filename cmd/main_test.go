package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"chat-widget/internal/completion"
	"chat-widget/internal/config"
	"chat-widget/internal/integrations/paramstore"
	"chat-widget/widget"
)

type fakeGetter struct {
	value string
	err   error
	calls int
}

func (f *fakeGetter) GetParameter(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.value, f.err
}

func withParamGetter(t *testing.T, g paramstore.Getter, err error) {
	t.Helper()
	orig := newParamGetter
	newParamGetter = func(context.Context) (paramstore.Getter, error) { return g, err }
	t.Cleanup(func() { newParamGetter = orig })
}

func TestResolveAPIKey(t *testing.T) {
	ctx := context.Background()
	log := zerolog.Nop()

	t.Run("environment wins", func(t *testing.T) {
		g := &fakeGetter{value: "from-ssm"}
		withParamGetter(t, g, nil)
		cfg := &config.Config{Provider: config.ProviderGemini, GeminiAPIKey: " env-key ", APIKeyParam: "/chat/key"}
		require.Equal(t, "env-key", resolveAPIKey(ctx, cfg, log))
		require.Zero(t, g.calls)
	})

	t.Run("parameter store", func(t *testing.T) {
		g := &fakeGetter{value: `{"token":"from-ssm"}`}
		withParamGetter(t, g, nil)
		cfg := &config.Config{Provider: config.ProviderOpenAI, APIKeyParam: "/chat/key"}
		require.Equal(t, "from-ssm", resolveAPIKey(ctx, cfg, log))
		require.Equal(t, 1, g.calls)
	})

	t.Run("no parameter configured", func(t *testing.T) {
		g := &fakeGetter{value: "unused"}
		withParamGetter(t, g, nil)
		require.Empty(t, resolveAPIKey(ctx, &config.Config{Provider: config.ProviderGemini}, log))
		require.Zero(t, g.calls)
	})

	t.Run("lookup failure", func(t *testing.T) {
		withParamGetter(t, &fakeGetter{err: errors.New("access denied")}, nil)
		cfg := &config.Config{Provider: config.ProviderGemini, APIKeyParam: "/chat/key"}
		require.Empty(t, resolveAPIKey(ctx, cfg, log))
	})

	t.Run("client failure", func(t *testing.T) {
		withParamGetter(t, nil, errors.New("no region"))
		cfg := &config.Config{Provider: config.ProviderGemini, APIKeyParam: "/chat/key"}
		require.Empty(t, resolveAPIKey(ctx, cfg, log))
	})
}

func TestNewCompleter_MissingKeyIsFallback(t *testing.T) {
	c, closer := newCompleter(context.Background(), &config.Config{Provider: config.ProviderGemini}, zerolog.Nop())
	require.Nil(t, c)
	require.Nil(t, closer)
}

func TestNewCompleter_OpenAI(t *testing.T) {
	cfg := &config.Config{Provider: config.ProviderOpenAI, OpenAIAPIKey: "sk-test", OpenAIModel: "gpt-4o-mini"}
	c, closer := newCompleter(context.Background(), cfg, zerolog.Nop())
	require.NotNil(t, c)
	require.Nil(t, closer)
}

func testConfig() *config.Config {
	return &config.Config{
		Provider:            config.ProviderGemini,
		APIPrefix:           "/api",
		MaxHistory:          20,
		DefaultSystemPrompt: completion.DefaultSystemPrompt,
	}
}

func TestNewApp_FallbackModeOnHealth(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(), zerolog.Nop(), nil)
	require.NoError(t, err)
	require.Equal(t, completion.ModeFallback, a.gateway.Mode())
	require.NoError(t, a.Close())

	srv := httptest.NewServer(a.handler)
	defer srv.Close()
	res, err := srv.Client().Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRunChat(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(), zerolog.Nop(), nil)
	require.NoError(t, err)
	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	opts := &chatOptions{
		apiURL:    srv.URL,
		apiPrefix: "/api",
		stateFile: filepath.Join(t.TempDir(), "state.json"),
		title:     "Demo",
	}
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())

	var out bytes.Buffer
	require.NoError(t, runChat(cmd, opts, strings.NewReader("Hello\n   \n/quit\n"), &out))

	text := out.String()
	require.Contains(t, text, "== Demo ==")
	require.Contains(t, text, "Type your message... > ")
	require.Equal(t, 1, strings.Count(text, "bot: "))

	stored, ok, err := widget.NewFileStorage(opts.stateFile).GetItem(widget.ConversationIDKey)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(stored, "conv_"))

	// A second session restores the conversation.
	out.Reset()
	require.NoError(t, runChat(cmd, opts, strings.NewReader("/quit\n"), &out))
	require.Contains(t, out.String(), "you: Hello")
	require.Contains(t, out.String(), stored)
}
