package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/brendan.keane/sqlhttp/internal/errors"
	"github.com/brendan.keane/sqlhttp/internal/host"
	httpinternal "github.com/brendan.keane/sqlhttp/internal/http"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// QueryHandler runs SQL with the HTTP functions available
type QueryHandler struct {
	logger zerolog.Logger
	opts   []httpinternal.ExecutorOption
}

// NewQueryHandler creates a new query command handler
func NewQueryHandler(logger zerolog.Logger, opts ...httpinternal.ExecutorOption) *QueryHandler {
	return &QueryHandler{
		logger: logger.With().Str("handler", "query").Logger(),
		opts:   opts,
	}
}

// Execute handles the query command. The first SIGINT aborts the HTTP
// transaction in flight and is then forwarded to cancel the statement; a
// second one cancels the statement directly.
func (h *QueryHandler) Execute(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to load configuration")
		return err
	}
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New(errors.ErrorTypeInvalidInput, "SQL is required").
			WithContext("field", "sql").
			WithContext("suggestion", `try: sqlhttp query "SELECT http_get('https://example.com')"`)
	}

	hst := host.New(h.logger, cfg, h.opts...)
	defer hst.Close()

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()
	restore := hst.Install(cancel)
	defer restore()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		interrupted := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-sigs:
				if interrupted {
					cancel()
					return
				}
				interrupted = true
				h.logger.Debug().Msg("interrupt received")
				hst.Interrupt()
			}
		}
	}()

	return h.Run(ctx, hst, cfg.Database, query, cmd.OutOrStdout())
}

// Run executes query on a database opened through hst and prints the
// result set tab-separated, column names first
func (h *QueryHandler) Run(ctx context.Context, hst *host.Host, dsn, query string, w io.Writer) error {
	db, err := hst.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	h.logger.Debug().Str("database", dsn).Str("sql", query).Msg("running query")

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return queryError(ctx, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return queryError(ctx, err)
	}
	if len(columns) > 0 {
		fmt.Fprintln(w, strings.Join(columns, "\t"))
	}

	values := make([]interface{}, len(columns))
	ptrs := make([]interface{}, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return queryError(ctx, err)
		}
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = formatValue(v)
		}
		fmt.Fprintln(w, strings.Join(fields, "\t"))
		count++
	}
	if err := rows.Err(); err != nil {
		return queryError(ctx, err)
	}

	h.logger.Debug().Int("rows", count).Msg("query completed")
	return nil
}

func queryError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errors.Wrap(err, errors.ErrorTypeCancelled, "query cancelled")
	}
	return errors.Wrap(err, errors.ErrorTypeInternal, "query failed")
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
