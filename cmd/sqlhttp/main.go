package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/brendan.keane/sqlhttp/internal/cli"
	"github.com/brendan.keane/sqlhttp/internal/config"
	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/logger"
	"github.com/brendan.keane/sqlhttp/internal/session"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", errors.UserMessage(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	log := zerolog.Nop()

	rootCmd := &cobra.Command{
		Use:   "sqlhttp",
		Short: "HTTP requests from SQL",
		Long: `sqlhttp runs SQL against SQLite with an http family of functions
(http, http_get, http_post, ...) that perform real HTTP requests, and can
serve the same facility as MCP tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log = logger.InitLogger(&cfg.Logger)
			cmd.SetContext(config.WithConfig(cmd.Context(), cfg))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML configuration file (or SQLHTTP_CONFIG)")
	flags.Bool("keepalive", false, "Reuse the transport handle and connections between requests")
	flags.Int("timeout-msec", 0, "Overall request timeout in milliseconds (0 keeps the 5s default)")
	flags.String("log-level", "warn", "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", "pretty", "Log format (pretty or json)")
	flags.StringArray("option", nil, "Runtime option NAME=VALUE applied to every session (repeatable)")
	rootCmd.RegisterFlagCompletionFunc("option", optionCompletion)

	// handlers read the logger lazily so they see the configured one
	rootCmd.AddCommand(
		newQueryCmd(func() zerolog.Logger { return log }),
		newRequestCmd(func() zerolog.Logger { return log }),
		newOptionsCmd(func() zerolog.Logger { return log }),
		newMCPCmd(func() zerolog.Logger { return log }),
		newVersionCmd(),
		generateCompletionCmd(),
	)
	return rootCmd
}

func newQueryCmd(log func() zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query [--db DSN] SQL",
		Short: "Run SQL with the HTTP functions available",
		Example: `  sqlhttp query "SELECT http_get('https://example.com')"
  sqlhttp query --db data.db "SELECT json_extract(http_get(url), '$.status') FROM sites"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.NewQueryHandler(log()).Execute(cmd, args)
		},
	}
	cmd.Flags().String("db", ":memory:", "SQLite database (or SQLHTTP_DATABASE)")
	return cmd
}

func newRequestCmd(log func() zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request URI",
		Short: "Perform one HTTP request through a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.NewRequestHandler(log()).Execute(cmd, args)
		},
	}
	flags := cmd.Flags()
	flags.StringP("request", "X", "GET", "HTTP method")
	flags.StringArrayP("header", "H", nil, `Request header "Field: value" (repeatable)`)
	flags.StringP("data", "d", "", "Request body")
	flags.String("content-type", "", "Body media type (default application/x-www-form-urlencoded)")
	flags.BoolP("include", "i", false, "Include status and response headers in the output")
	flags.BoolP("verbose", "v", false, "Show request and response headers on stderr")
	cmd.RegisterFlagCompletionFunc("request", methodCompletion)
	return cmd
}

func newOptionsCmd(log func() zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List the runtime options and their configured values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.NewOptionsHandler(log()).Execute(cmd, args)
		},
	}
}

func newMCPCmd(log func() zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the HTTP tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.NewMCPHandler(log()).Execute(cmd, args)
		},
	}
	cmd.Flags().String("mcp-desc", "", "Server description for LLM context (or SQLHTTP_MCP_DESCRIPTION)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sqlhttp %s\n", config.Version)
		},
	}
}

// Completion functions

func methodCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	methods := []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD"}
	return methods, cobra.ShellCompDirectiveNoFileComp
}

func optionCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var names []string
	for _, opt := range session.Options() {
		if strings.HasPrefix(opt.Name, strings.ToUpper(toComplete)) {
			names = append(names, opt.Name+"=")
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
}

func generateCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:

  $ source <(sqlhttp completion bash)

Zsh:

  $ source <(sqlhttp completion zsh)

Fish:

  $ sqlhttp completion fish | source

PowerShell:

  PS> sqlhttp completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		PersistentPreRunE:     func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
