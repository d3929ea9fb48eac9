package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/nightwatch/nightwatch/pkg/log"
)

const defaultSQLTimeout = 10 * time.Second

// sqlProvider runs a query against a PostgreSQL database and returns the
// first column of the first row. A fresh connection is opened per tick so
// the provider holds no state between observations.
type sqlProvider struct {
	dsn     string
	query   string
	timeout time.Duration
	logger  zerolog.Logger
}

func sqlSpec() Spec {
	return Spec{
		New: newSQLProvider,
		Mandatory: []string{
			"dsn",   // PostgreSQL connection string
			"query", // query whose first column of the first row is the observed value
		},
		Optional: []string{
			"timeout", // connect+query timeout in seconds, default 10
		},
	}
}

func newSQLProvider(cfg map[string]any) (Provider, error) {
	return &sqlProvider{
		dsn:     stringOption(cfg, "dsn", ""),
		query:   stringOption(cfg, "query", ""),
		timeout: time.Duration(intOption(cfg, "timeout", int(defaultSQLTimeout/time.Second))) * time.Second,
		logger:  log.WithProvider("sql"),
	}, nil
}

func (p *sqlProvider) Process(ctx context.Context) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := pgx.Connect(ctx, p.dsn)
	if err != nil {
		return nil, fmt.Errorf("sql connect: %w", err)
	}
	defer conn.Close(ctx)

	var value any
	if err := conn.QueryRow(ctx, p.query).Scan(&value); err != nil {
		return nil, fmt.Errorf("sql query: %w", err)
	}

	p.logger.Debug().Str("query", p.query).Interface("value", value).Msg("query executed")
	return normalizeSQLValue(value), nil
}

// normalizeSQLValue collapses the driver's numeric types so thresholds
// written as plain YAML numbers compare cleanly.
func normalizeSQLValue(v any) any {
	switch n := v.(type) {
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return float64(n)
	case []byte:
		return string(n)
	}
	return v
}
