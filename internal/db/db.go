package db

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"paworker/internal/auth"
	"paworker/internal/store"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Options bound how long a single call may hold or wait for a connection.
type Options struct {
	MaxOpenConns     int
	ConnMaxLifetime  time.Duration
	ConnectTimeout   time.Duration
	StatementTimeout time.Duration
	Logger           logger.Interface
}

func Connect(dsn string, opts Options) (*gorm.DB, error) {
	cfg := &gorm.Config{}
	if opts.Logger != nil {
		cfg.Logger = opts.Logger
	}

	dsn = WithTimeouts(dsn, opts.ConnectTimeout, opts.StatementTimeout)
	gdb, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, err
	}
	if err := Tune(gdb, opts); err != nil {
		return nil, err
	}
	return gdb, nil
}

// Tune applies pool limits to an open connection.
func Tune(gdb *gorm.DB, opts Options) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
		sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}
	return nil
}

// WithTimeouts adds connect_timeout and statement_timeout to a URL or
// keyword/value DSN unless it already sets them. Zero durations are skipped.
func WithTimeouts(dsn string, connect, statement time.Duration) string {
	params := [][2]string{}
	if connect > 0 {
		params = append(params, [2]string{"connect_timeout", fmt.Sprintf("%d", int(connect.Seconds()))})
	}
	if statement > 0 {
		params = append(params, [2]string{"statement_timeout", fmt.Sprintf("%d", statement.Milliseconds())})
	}
	if len(params) == 0 {
		return dsn
	}

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return dsn
		}
		q := u.Query()
		for _, p := range params {
			if q.Get(p[0]) == "" {
				q.Set(p[0], p[1])
			}
		}
		u.RawQuery = q.Encode()
		return u.String()
	}

	out := strings.TrimSpace(dsn)
	for _, p := range params {
		if strings.Contains(out, p[0]+"=") {
			continue
		}
		out += " " + p[0] + "=" + p[1]
	}
	return strings.TrimSpace(out)
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	// Tables
	models := append([]any{&auth.User{}}, store.Models()...)
	if err := gdb.AutoMigrate(models...); err != nil {
		return err
	}

	// Helpful indexes
	stmts := []string{
		`create index if not exists idx_audit_request_created on audit_logs(pa_request_id, created_at, id);`,
		`create index if not exists idx_packs_request_created on evidence_packs(pa_request_id, created_at);`,
		`create index if not exists idx_jobs_status on processing_jobs(status, modified_at);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
