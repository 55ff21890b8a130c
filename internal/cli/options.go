package cli

import (
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// OptionsHandler lists the runtime options
type OptionsHandler struct {
	logger zerolog.Logger
}

// NewOptionsHandler creates a new options command handler
func NewOptionsHandler(logger zerolog.Logger) *OptionsHandler {
	return &OptionsHandler{
		logger: logger.With().Str("handler", "options").Logger(),
	}
}

// Execute prints the allow-list with the values configured for new sessions
func (h *OptionsHandler) Execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sess, err := session.New(h.logger, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	PrintOptions(cmd.OutOrStdout(), sess.ListOptions())
	return nil
}
