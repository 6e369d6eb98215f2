package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/turbopuffer/lambada/pkg/lambada"
)

// normalizeMySQLDSN validates a DSN and turns on parseTime, for parsing
// timestamps into Go time.Time objects.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parsing mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func connectToMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("missing required flag: -mysql-dsn")
	}
	dsn, err := normalizeMySQLDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening mysql connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging mysql database: %w", err)
	}

	return db, nil
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("invalid mysql table name %q", name)
	}
	return nil
}

func createTableStatement(table string) string {
	return fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS `%s` ("+
			"variant VARCHAR(32) NOT NULL, "+
			"idx INT NOT NULL, "+
			"text MEDIUMTEXT NOT NULL, "+
			"PRIMARY KEY (variant, idx)"+
			") DEFAULT CHARSET=utf8mb4",
		table,
	)
}

// buildInsert returns a multi-row insert statement for n records.
func buildInsert(table string, n int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO `%s` (variant, idx, text) VALUES ", table)
	for i := range n {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?)")
	}
	return b.String()
}

// mysqlSink replaces every row of a variant inside a single transaction, so
// readers see either the previous export or the new one.
type mysqlSink struct {
	db        *sql.DB
	tx        *sql.Tx
	table     string
	variant   string
	batchSize int
	pending   []any
}

func newMySQLSink(ctx context.Context, dsn, table, variant string, batchSize int) (*mysqlSink, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}
	db, err := connectToMySQL(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, createTableStatement(table)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table %q: %w", table, err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM `%s` WHERE variant = ?", table), variant); err != nil {
		tx.Rollback()
		db.Close()
		return nil, fmt.Errorf("deleting existing rows: %w", err)
	}
	return &mysqlSink{
		db:        db,
		tx:        tx,
		table:     table,
		variant:   variant,
		batchSize: batchSize,
	}, nil
}

func (s *mysqlSink) Write(ctx context.Context, rec lambada.Record) error {
	s.pending = append(s.pending, s.variant, rec.Index, rec.Text)
	if len(s.pending)/3 >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *mysqlSink) flush(ctx context.Context) error {
	n := len(s.pending) / 3
	if n == 0 {
		return nil
	}
	if _, err := s.tx.ExecContext(ctx, buildInsert(s.table, n), s.pending...); err != nil {
		return fmt.Errorf("inserting %d rows: %w", n, err)
	}
	s.pending = s.pending[:0]
	return nil
}

func (s *mysqlSink) Commit(ctx context.Context) error {
	defer s.db.Close()
	if err := s.flush(ctx); err != nil {
		return err
	}
	if err := s.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *mysqlSink) Abort() error {
	defer s.db.Close()
	if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}
