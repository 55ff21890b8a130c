package cli

import (
	"github.com/brendan.keane/sqlhttp/internal/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// MCPHandler handles MCP server commands
type MCPHandler struct {
	logger zerolog.Logger
}

// NewMCPHandler creates a new MCP command handler
func NewMCPHandler(logger zerolog.Logger) *MCPHandler {
	return &MCPHandler{
		logger: logger.With().Str("handler", "mcp").Logger(),
	}
}

// Execute handles the MCP server command
func (h *MCPHandler) Execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	h.logger.Debug().
		Bool("keepalive", cfg.KeepAlive).
		Int("timeout_msec", cfg.TimeoutMsec).
		Int("options", len(cfg.Options)).
		Msg("starting MCP server")

	server, err := mcp.NewServer(h.logger, cfg)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create MCP server")
		return err
	}

	h.logger.Debug().Msg("MCP server created, starting message loop")
	return server.Start()
}
