package storage

import (
	"database/sql"
	"fmt"
	"strings"

	"pdfbot/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database for dbType.
func Open(dbType string, cfg *config.Config) (*sql.DB, error) {
	dbCfg, ok := cfg.Databases[dbType]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", dbType)
	}

	var (
		db  *sql.DB
		err error
	)

	switch strings.ToLower(dbType) {
	case "sqlite", "sqlite3":
		if dbCfg.DSN == "" {
			return nil, fmt.Errorf("sqlite dsn must be provided")
		}
		db, err = sql.Open("sqlite3", dbCfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// one connection, so ":memory:" is a single database and writes never contend
		db.SetMaxOpenConns(1)
	case "mysql":
		dsn := dbCfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
				dbCfg.Username,
				dbCfg.Password,
				dbCfg.Host,
				dbCfg.Port,
				dbCfg.DBName,
				dbCfg.Params,
			)
		}
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", dbType)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS operations (
				id TEXT PRIMARY KEY,
				chat_id INTEGER NOT NULL,
				kind TEXT NOT NULL,
				inputs INTEGER NOT NULL,
				outputs INTEGER NOT NULL,
				status TEXT NOT NULL,
				error TEXT NOT NULL DEFAULT '',
				started_at DATETIME NOT NULL,
				finished_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_operations_chat ON operations(chat_id, started_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_operations_finished ON operations(finished_at)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS operations (
				id CHAR(36) NOT NULL,
				chat_id BIGINT NOT NULL,
				kind VARCHAR(32) NOT NULL,
				inputs INT NOT NULL,
				outputs INT NOT NULL,
				status VARCHAR(16) NOT NULL,
				error TEXT NOT NULL,
				started_at DATETIME(3) NOT NULL,
				finished_at DATETIME(3) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_operations_chat (chat_id, started_at),
				INDEX idx_operations_finished (finished_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
