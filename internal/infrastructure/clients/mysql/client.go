package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/zatekoja/retailsegmentation/internal/infrastructure/observability"
	"github.com/zatekoja/retailsegmentation/pkg/config"
	"github.com/zatekoja/retailsegmentation/pkg/retry"
)

// Client represents a MySQL/MariaDB database client
type Client struct {
	db *sql.DB
}

// NewClient opens a MySQL connection. MYSQL_DSN wins over the discrete
// DB_* settings when set.
func NewClient(cfg *config.DatabaseConfig) (*Client, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	logger := observability.GetLogger()
	err = retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"MySQL",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return db.PingContext(ctx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("MySQL connection attempt failed")
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL after retries: %w", err)
	}

	logger.Info().Msg("connected to MySQL")
	return &Client{db: db}, nil
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// DSN builds a go-sql-driver DSN from the configuration. mysql:// and
// mariadb:// URLs are converted; anything else in MySQLDSN is parsed as a
// native DSN. Either way the result scans DATETIME columns into UTC
// time.Time values.
func DSN(cfg *config.DatabaseConfig) (string, error) {
	if cfg.MySQLDSN != "" {
		return toMySQLDSN(cfg.MySQLDSN)
	}

	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = cfg.Host + ":" + strconv.Itoa(cfg.Port)
	mc.DBName = cfg.Database
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.InterpolateParams = true
	return mc.FormatDSN(), nil
}

func toMySQLDSN(dsn string) (string, error) {
	if !strings.HasPrefix(dsn, "mariadb://") && !strings.HasPrefix(dsn, "mysql://") {
		mc, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid MySQL DSN: %w", err)
		}
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.InterpolateParams = true
		return mc.FormatDSN(), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	mc := mysql.NewConfig()
	if u.User != nil {
		mc.User = u.User.Username()
		mc.Passwd, _ = u.User.Password()
	}
	mc.Net = "tcp"
	mc.Addr = u.Host
	mc.DBName = strings.TrimPrefix(u.Path, "/")
	if mc.User == "" || mc.Addr == "" || mc.DBName == "" {
		return "", fmt.Errorf("incomplete MySQL DSN: user, host and database are required")
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.InterpolateParams = true
	return mc.FormatDSN(), nil
}
