package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"chat-widget/widget"
)

type chatOptions struct {
	apiURL       string
	apiPrefix    string
	stateFile    string
	title        string
	systemPrompt string
}

func newChatCommand() *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a running chat backend from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if opts.apiURL == "" {
				opts.apiURL = "http://localhost:" + strconv.Itoa(cfg.Port)
			}
			if opts.apiPrefix == "" {
				opts.apiPrefix = cfg.APIPrefix
			}
			if opts.stateFile == "" {
				dir, err := os.UserConfigDir()
				if err != nil {
					return errors.Wrap(err, "resolve config dir")
				}
				opts.stateFile = filepath.Join(dir, "chat-widget", "state.json")
			}
			return runChat(cmd, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.apiURL, "api-url", "", "backend base URL (default http://localhost:$PORT)")
	cmd.Flags().StringVar(&opts.apiPrefix, "api-prefix", "", "API path prefix (default $API_PREFIX)")
	cmd.Flags().StringVar(&opts.stateFile, "state-file", "", "file keeping the conversation id across runs")
	cmd.Flags().StringVar(&opts.title, "title", "", "window title")
	cmd.Flags().StringVar(&opts.systemPrompt, "system-prompt", "", "system prompt sent with every message")
	return cmd
}

func runChat(cmd *cobra.Command, opts *chatOptions, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	embedder := widget.NewEmbedder(
		widget.WithStorage(widget.NewFileStorage(opts.stateFile)),
		widget.WithLogger(log.Logger),
	)
	c, err := embedder.Init(ctx, widget.Config{
		APIURL:       opts.apiURL,
		APIPrefix:    opts.apiPrefix,
		Title:        opts.title,
		SystemPrompt: opts.systemPrompt,
	})
	if err != nil {
		return err
	}
	defer embedder.Destroy()

	c.Toggle()
	wcfg := c.Config()
	fmt.Fprintf(out, "== %s == (conversation %s, /quit to exit)\n", wcfg.Title, c.ConversationID())

	printed := printMessages(out, c.Messages(), 0, true)
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "%s > ", wcfg.Placeholder)
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "/quit" {
			break
		}
		c.SetInput(line)
		if !c.Submit(ctx) {
			continue
		}
		c.Wait()
		printed = printMessages(out, c.Messages(), printed, false)
	}
	return errors.Wrap(scanner.Err(), "read input")
}

// printMessages writes the bubbles from index from on and returns the new
// count. Typed input is already on screen, so user bubbles are echoed only
// for restored history.
func printMessages(out io.Writer, msgs []widget.DisplayMessage, from int, echoUser bool) int {
	for _, m := range msgs[from:] {
		if m.IsUser {
			if echoUser {
				fmt.Fprintf(out, "you: %s\n", m.Content)
			}
			continue
		}
		fmt.Fprintf(out, "bot: %s\n", m.Content)
	}
	return len(msgs)
}
