package bdd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chirino/askbox/internal/testutil/containers"
	"github.com/chirino/askbox/internal/testutil/cucumber"
	"github.com/jackc/pgx/v5"
)

// PostgresTestDB reaches the Postgres store behind the server under test.
type PostgresTestDB struct {
	DBURL    string
	RedisURL string
}

var _ cucumber.TestDB = (*PostgresTestDB)(nil)

func (p *PostgresTestDB) withConn(ctx context.Context, fn func(conn *pgx.Conn) error) error {
	conn, err := pgx.Connect(ctx, p.DBURL)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer conn.Close(ctx)
	return fn(conn)
}

func (p *PostgresTestDB) ClearAll(ctx context.Context) error {
	err := p.withConn(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "TRUNCATE "+strings.Join(clearOrder, ", "))
		return err
	})
	if err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	// Cached handle lookups would otherwise survive the truncate.
	return containers.FlushRedis(ctx, p.RedisURL)
}

func (p *PostgresTestDB) ExecSQL(ctx context.Context, query string) ([]map[string]interface{}, error) {
	var result []map[string]interface{}
	err := p.withConn(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		result, err = pgx.CollectRows(rows, pgx.RowToMap)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("SQL query failed: %w", err)
	}
	for _, row := range result {
		for k, v := range row {
			row[k] = normalizeSQLValue(v)
		}
	}
	if result == nil {
		result = []map[string]interface{}{}
	}
	return result, nil
}

// clearOrder lists tables children first so foreign keys never block a delete.
var clearOrder = []string{"messages", "screen_names", "members"}

// normalizeSQLValue renders driver values the way the JSON API shows them.
func normalizeSQLValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", t[0:4], t[4:6], t[6:8], t[8:10], t[10:16])
	case []byte:
		return string(t)
	default:
		return v
	}
}
