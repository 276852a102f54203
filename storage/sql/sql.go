package sql

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const ProviderKey = "sql"

const (
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

type Provider struct {
	PrimaryDSN        string `json:"primaryDsn"` // user:password@tcp(hostname:port), file path, or postgres URL
	Database          string `json:"database"`
	Dialect           string `json:"dialect"`
	SqlLite           bool   `json:"sqlLite"`
	primaryConnection *sql.DB
	afterUpdate       []func()
	log               *zap.SugaredLogger
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sql.DB, dialect string) *Provider {
	return &Provider{Dialect: dialect, primaryConnection: db}
}

func (p *Provider) SetLogger(log *zap.SugaredLogger) {
	p.log = log.Named("storage.sql")
}

func (p *Provider) logger() *zap.SugaredLogger {
	if p.log == nil {
		p.log = zap.NewNop().Sugar()
	}
	return p.log
}

func (p *Provider) dialect() string {
	if p.SqlLite {
		return DialectSQLite
	}
	if p.Dialect == "" {
		return DialectMySQL
	}
	return p.Dialect
}

func (p *Provider) Close() error {
	var errs []error
	if p.primaryConnection != nil {
		errs = append(errs, p.primaryConnection.Close())
	}
	return errors.Join(errs...)
}

func (p *Provider) Connect() error {
	if p.primaryConnection == nil {
		var err error
		switch p.dialect() {
		case DialectSQLite:
			p.primaryConnection, err = sql.Open(sqliteDriver, p.PrimaryDSN)
		case DialectPostgres:
			p.primaryConnection, err = sql.Open("pgx", p.PrimaryDSN)
		case DialectMySQL:
			p.primaryConnection, err = sql.Open("mysql", p.PrimaryDSN+"/"+p.Database+"?parseTime=true")
		default:
			return fmt.Errorf("unknown sql dialect %q", p.Dialect)
		}

		// Handle any errors that may occur during connection
		if err != nil {
			return fmt.Errorf("failed to open db %s", err)
		}
	}

	// Ping the database to ensure a successful connection
	return p.primaryConnection.Ping()
}

// Initialize connects and applies every migration not yet recorded in rubix_migrations.
func (p *Provider) Initialize() error {
	if err := p.Connect(); err != nil {
		return err
	}

	if _, err := p.primaryConnection.Exec("create table if not exists rubix_migrations (migration varchar(255) not null primary key, applied int not null)"); err != nil {
		return err
	}

	processed := make(map[string]bool)
	rows, err := p.primaryConnection.Query("SELECT migration, applied FROM rubix_migrations")
	if err != nil {
		return err
	}
	for rows.Next() {
		var migKey string
		var applied int
		if scanErr := rows.Scan(&migKey, &applied); scanErr != nil {
			rows.Close()
			return scanErr
		}
		processed[migKey] = applied == 1
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	applied := 0
	for _, query := range migrations(p.dialect()) {
		if processed[query.key] {
			continue
		}
		if _, migErr := p.primaryConnection.Exec(query.query); migErr != nil {
			return fmt.Errorf("migration %s: %w", query.key, migErr)
		}
		if _, migErr := p.primaryConnection.Exec(p.rebind("INSERT INTO rubix_migrations (migration, applied) VALUES (?, 1)"), query.key); migErr != nil {
			return migErr
		}
		applied++
	}
	p.logger().Infow("migrations applied", "dialect", p.dialect(), "applied", applied)
	return nil
}

func (p *Provider) AfterUpdate(exec func()) error {
	p.afterUpdate = append(p.afterUpdate, exec)
	return nil
}

func (p *Provider) update() {
	for _, exec := range p.afterUpdate {
		exec()
	}
}

// rebind rewrites ? placeholders into $n for postgres.
func (p *Provider) rebind(query string) string {
	if p.dialect() != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func FromJson(data []byte) (*Provider, error) {
	p := &Provider{}
	if err := json.Unmarshal(data, &p); err == nil {
		return p, nil
	} else {
		return nil, err
	}
}
