package main

import (
	"context"
	"io"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chat-widget/handler"
	"chat-widget/internal/completion"
	"chat-widget/internal/config"
	"chat-widget/internal/integrations/gemini"
	"chat-widget/internal/integrations/openai"
	"chat-widget/internal/integrations/paramstore"
	"chat-widget/internal/repository"
	"chat-widget/internal/usecase"
)

// app is the wired backend shared by the serve and lambda commands.
type app struct {
	handler *handler.Handler
	gateway *completion.Gateway
	closers []io.Closer
}

// newParamGetter builds the SSM-backed getter used when the credential lives
// in Parameter Store.
var newParamGetter = func(ctx context.Context) (paramstore.Getter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load AWS config")
	}
	return paramstore.New(awsssm.NewFromConfig(awsCfg))
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger, static http.Handler) (*app, error) {
	a := &app{}

	completer, closer := newCompleter(ctx, cfg, log)
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	a.gateway = completion.New(completer,
		completion.WithTimeout(cfg.CompletionTimeout),
		completion.WithDefaultSystemPrompt(cfg.DefaultSystemPrompt),
		completion.WithLogger(log.With().Str("component", "completion").Logger()),
	)

	store := repository.NewMemoryStore(cfg.MaxHistory)
	svc, err := usecase.NewChatService(store, a.gateway,
		usecase.WithLogger(log.With().Str("component", "usecase").Logger()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create chat service")
	}

	opts := []handler.Option{
		handler.WithPrefix(cfg.APIPrefix),
		handler.WithMode(func() string { return string(a.gateway.Mode()) }),
		handler.WithLogger(log.With().Str("component", "handler").Logger()),
	}
	if static != nil {
		opts = append(opts, handler.WithStatic(static))
	}
	a.handler, err = handler.NewHandler(svc, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "create handler")
	}

	log.Info().
		Str("provider", string(cfg.Provider)).
		Str("mode", string(a.gateway.Mode())).
		Int("max_history", cfg.MaxHistory).
		Msg("chat backend ready")
	return a, nil
}

func (a *app) Close() error {
	var result *multierror.Error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// newCompleter selects the upstream completion service. Any problem obtaining
// a credential or a client leaves the gateway in fallback mode.
func newCompleter(ctx context.Context, cfg *config.Config, log zerolog.Logger) (completion.Completer, io.Closer) {
	key := resolveAPIKey(ctx, cfg, log)
	if key == "" {
		log.Warn().Msg("no completion credential configured, replies come from the fallback set")
		return nil, nil
	}

	switch cfg.Provider {
	case config.ProviderOpenAI:
		c, err := openai.NewClient(key, openai.WithBaseURL(cfg.OpenAIBaseURL), openai.WithModel(cfg.OpenAIModel))
		if err != nil {
			log.Warn().Err(err).Msg("could not create OpenAI client, using fallback replies")
			return nil, nil
		}
		log.Info().Str("model", c.Model()).Msg("using OpenAI-compatible completion service")
		return c, nil
	default:
		c, err := gemini.NewClient(ctx, key, cfg.GeminiModel)
		if err != nil {
			log.Warn().Err(err).Msg("could not create Gemini client, using fallback replies")
			return nil, nil
		}
		log.Info().Str("model", c.Model()).Msg("using Gemini completion service")
		return c, c
	}
}

// resolveAPIKey prefers the environment and falls back to Parameter Store
// when API_KEY_PARAM is set.
func resolveAPIKey(ctx context.Context, cfg *config.Config, log zerolog.Logger) string {
	if key := cfg.APIKey(); key != "" {
		return key
	}
	if cfg.APIKeyParam == "" {
		return ""
	}
	getter, err := newParamGetter(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not create parameter store client")
		return ""
	}
	key, err := paramstore.FetchToken(ctx, getter, cfg.APIKeyParam)
	if err != nil {
		log.Warn().Err(err).Str("param", cfg.APIKeyParam).Msg("could not fetch completion credential")
		return ""
	}
	return key
}
