// Package orderdb implements the read-only order-management database
// boundary on PostgreSQL.
//
// The pipeline issues exactly one parameterized batch query per cycle; the
// job count can run to the hundreds and per-row lookups would dominate
// runtime and connection overhead on the far side.
package orderdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config carries the connection settings, usually from the app config.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Source answers credit-hold lookups against the order table.
type Source struct {
	pool *pgxpool.Pool
}

// Connect opens a pooled connection and verifies it with a ping.
func Connect(ctx context.Context, cfg Config) (*Source, error) {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
	)
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("order db connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("order db ping: %w", err)
	}
	return &Source{pool: pool}, nil
}

// Close releases the pool.
func (s *Source) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// HoldFlags returns the credit-hold flag for every recognized order number
// in one batched query. Order numbers absent from the order table are absent
// from the result.
func (s *Source) HoldFlags(ctx context.Context, orderNos []string) (map[string]bool, error) {
	if len(orderNos) == 0 {
		return map[string]bool{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT order_no, credit_hold FROM r4_order WHERE order_no = ANY($1)`,
		orderNos,
	)
	if err != nil {
		return nil, fmt.Errorf("credit-hold batch query: %w", err)
	}
	defer rows.Close()

	flags := make(map[string]bool, len(orderNos))
	for rows.Next() {
		var orderNo, hold string
		if err := rows.Scan(&orderNo, &hold); err != nil {
			return nil, fmt.Errorf("scan credit-hold row: %w", err)
		}
		flags[strings.TrimSpace(orderNo)] = parseHoldFlag(hold)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read credit-hold rows: %w", err)
	}
	return flags, nil
}

// parseHoldFlag interprets the order table's hold column, which has been
// stored over the years as Y/N, YES/NO, and 1/0.
func parseHoldFlag(s string) bool {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "Y", "YES", "1", "TRUE", "T":
		return true
	default:
		return false
	}
}
