package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"regexp"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver

	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/config"
	"github.com/couchcryptid/hydrawise-flowmeter-etl/internal/domain"
)

// Dialect selects the SQL flavour of the skip-on-duplicate insert.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// tableNameRe restricts configured table names to plain identifiers, since
// they are interpolated into statements.
var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store writes normalized rows to the hydrawise_flow_meter table, one
// auto-committed statement per row. It implements pipeline.RowSink.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	insert  string
	logger  *slog.Logger
}

// Open connects to the store configured in cfg (MySQL or PostgreSQL) and
// verifies the connection.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	var (
		db      *sql.DB
		dialect Dialect
		table   string
	)

	switch {
	case cfg.MySQL != nil:
		connector, err := mysql.NewConnector(mysqlConfig(cfg.MySQL))
		if err != nil {
			return nil, fmt.Errorf("mysql connector: %w", err)
		}
		db = sql.OpenDB(connector)
		dialect, table = MySQL, cfg.MySQL.Table
	case cfg.Postgres != nil:
		var err error
		db, err = sql.Open("pgx", cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		dialect, table = Postgres, cfg.Postgres.Table
	default:
		return nil, errors.New("no store configured")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s: %w", dialect, err)
	}

	s, err := New(db, dialect, table, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database handle.
func New(db *sql.DB, dialect Dialect, table string, logger *slog.Logger) (*Store, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	var insert string
	switch dialect {
	case MySQL:
		// A duplicate key updates nothing, so RowsAffected is 0.
		insert = "INSERT INTO " + table +
			" (zone, metric_timestamp, metric_datetime, runtime, litres) VALUES (?, ?, ?, ?, ?)" +
			" ON DUPLICATE KEY UPDATE zone = zone"
	case Postgres:
		insert = "INSERT INTO " + table +
			" (zone, metric_timestamp, metric_datetime, runtime, litres) VALUES ($1, $2, $3, $4, $5)" +
			" ON CONFLICT (zone, metric_timestamp) DO NOTHING"
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	return &Store{db: db, dialect: dialect, table: table, insert: insert, logger: logger}, nil
}

// Name identifies the store in logs.
func (s *Store) Name() string { return string(s.dialect) }

// Upsert inserts row unless (zone, metric_timestamp) already exists. A
// duplicate is not an error; inserted reports whether a new row was written.
func (s *Store) Upsert(ctx context.Context, row domain.Row) (bool, error) {
	var runtime any
	if row.Runtime != nil {
		runtime = *row.Runtime
	}

	res, err := s.db.ExecContext(ctx, s.insert, row.ZoneID, row.Timestamp, row.Time(), runtime, row.Volume)
	if err != nil {
		return false, fmt.Errorf("insert zone %d at %d: %w", row.ZoneID, row.Timestamp, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		// The statement succeeded; only the duplicate check is unavailable.
		return true, nil
	}
	if n == 0 {
		s.logger.Debug("duplicate row skipped", "zone", row.ZoneID, "metric_timestamp", row.Timestamp)
	}
	return n > 0, nil
}

// EnsureSchema creates the table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema(s.dialect, s.table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func schema(dialect Dialect, table string) string {
	if dialect == Postgres {
		return `CREATE TABLE IF NOT EXISTS ` + table + ` (
	zone SMALLINT NOT NULL,
	metric_timestamp BIGINT NOT NULL,
	metric_datetime TIMESTAMPTZ NOT NULL,
	runtime BIGINT NULL,
	litres BIGINT NOT NULL,
	PRIMARY KEY (zone, metric_timestamp)
)`
	}
	return `CREATE TABLE IF NOT EXISTS ` + table + ` (
	zone SMALLINT NOT NULL,
	metric_timestamp BIGINT NOT NULL,
	metric_datetime DATETIME NOT NULL,
	runtime BIGINT NULL,
	litres BIGINT NOT NULL,
	PRIMARY KEY (zone, metric_timestamp)
)`
}

func mysqlConfig(c *config.MySQLConfig) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	mc.DBName = c.Database
	mc.Loc = time.UTC
	mc.ParseTime = true
	mc.Params = map[string]string{"sql_mode": "'STRICT_ALL_TABLES'"}
	return mc
}
