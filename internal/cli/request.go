package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/brendan.keane/sqlhttp/internal/config"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const formContentType = "application/x-www-form-urlencoded"

// RequestHandler handles the single request command
type RequestHandler struct {
	logger zerolog.Logger
	opts   []httpinternal.ExecutorOption
}

// NewRequestHandler creates a new request command handler
func NewRequestHandler(logger zerolog.Logger, opts ...httpinternal.ExecutorOption) *RequestHandler {
	return &RequestHandler{
		logger: logger.With().Str("handler", "request").Logger(),
		opts:   opts,
	}
}

// Execute handles the request command
func (h *RequestHandler) Execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	if len(args) == 0 || args[0] == "" {
		return errors.New(errors.ErrorTypeInvalidInput, "uri is required").
			WithContext("field", "uri").
			WithContext("suggestion", "provide an http or https URL as an argument")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	printer := &ResponsePrinter{
		Out:            cmd.OutOrStdout(),
		Err:            cmd.ErrOrStderr(),
		IncludeHeaders: cfg.IncludeHeaders,
		Verbose:        cfg.Verbose,
	}
	return h.Run(ctx, cfg, args[0], printer)
}

// Run performs one request described by cfg against uri
func (h *RequestHandler) Run(ctx context.Context, cfg *config.Config, uri string, printer *ResponsePrinter) error {
	req := NewRequestFromConfig(cfg, uri)

	sess, err := session.New(h.logger, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	h.logger.Debug().
		Str("method", req.Method).
		Str("uri", req.URI).
		Int("headers", len(req.Headers)).
		Bool("has_content", req.Content != nil).
		Msg("processing request command")

	printer.PrintRequest(req)
	resp, err := httpinternal.NewExecutor(h.logger, sess, h.opts...).Execute(ctx, req)
	if err != nil {
		return err
	}
	printer.PrintResponse(resp)
	return nil
}

// NewRequestFromConfig builds the request described by the request flags.
// Data without an explicit content type is sent as a form body.
func NewRequestFromConfig(cfg *config.Config, uri string) *httpinternal.Request {
	req := &httpinternal.Request{
		Method:  cfg.Method,
		URI:     uri,
		Headers: ParseHeaders(cfg.Headers),
	}
	if cfg.Data != "" {
		req.Content = []byte(cfg.Data)
		req.ContentType = cfg.ContentType
		if req.ContentType == "" {
			req.ContentType = formContentType
		}
	}
	return req
}

// loadConfig prefers the configuration the root command stored in the
// command context
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if cfg, ok := config.FromContext(commandContext(cmd)); ok {
		return cfg, nil
	}
	cfg, err := config.LoadFromFlags(cmd.Flags())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
