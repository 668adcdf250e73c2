package widget

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

type Position string

const (
	PositionBottomRight Position = "bottom-right"
	PositionBottomLeft  Position = "bottom-left"
)

const (
	DefaultPrimaryColor = "#3B82F6"
	DefaultTitle        = "Chat Support"
	DefaultPlaceholder  = "Type your message..."
	DefaultAPIPrefix    = "/api"
)

// Config is supplied by the embedding site and trusted as-is beyond presence
// checks.
type Config struct {
	APIURL       string   `json:"apiUrl"`
	APIPrefix    string   `json:"apiPrefix,omitempty"`
	PrimaryColor string   `json:"primaryColor,omitempty"`
	Position     Position `json:"position,omitempty"`
	Title        string   `json:"title,omitempty"`
	Placeholder  string   `json:"placeholder,omitempty"`
	SystemPrompt string   `json:"systemPrompt,omitempty"`
}

// WithDefaults fills every optional field that was left empty.
func (c Config) WithDefaults() Config {
	c.APIURL = strings.TrimRight(strings.TrimSpace(c.APIURL), "/")
	if c.APIPrefix == "" {
		c.APIPrefix = DefaultAPIPrefix
	}
	if c.PrimaryColor == "" {
		c.PrimaryColor = DefaultPrimaryColor
	}
	if c.Position == "" {
		c.Position = PositionBottomRight
	}
	if c.Title == "" {
		c.Title = DefaultTitle
	}
	if c.Placeholder == "" {
		c.Placeholder = DefaultPlaceholder
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return errors.New("widget: apiUrl is required")
	}
	u, err := url.Parse(strings.TrimSpace(c.APIURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("widget: apiUrl %q is not an absolute URL", c.APIURL)
	}
	switch c.Position {
	case "", PositionBottomRight, PositionBottomLeft:
	default:
		return errors.Errorf("widget: unknown position %q", c.Position)
	}
	return nil
}

// ParseDataConfig decodes the JSON carried by a script tag's data-config attribute.
func ParseDataConfig(raw string) (Config, error) {
	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return Config{}, errors.Wrap(err, "widget: invalid data-config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}
