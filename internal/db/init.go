package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/lib/pq"
)

const schema = "taskfire_schema"

// Open connects to Postgres and applies pool sizing. The pool is shared by
// the scheduler loop and every running attempt, so it is bounded up front.
func Open(postgresURL string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*sql.DB, error) {
	sqlDB, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return sqlDB, nil
}

type sqlScript struct {
	name    string
	content string
}

// Init ensures the schema exists and executes every SQL script in baseDir
// in filename order. Scripts are written to be re-runnable.
func Init(sqlDB *sql.DB, baseDir string) error {
	if _, err := sqlDB.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	scripts, err := readSQLScripts(baseDir)
	if err != nil {
		return err
	}

	for _, script := range scripts {
		if _, err := sqlDB.Exec(script.content); err != nil {
			return fmt.Errorf("execute migration %s: %w", script.name, err)
		}
	}

	return nil
}

func readSQLScripts(baseDir string) ([]sqlScript, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	scripts := make([]sqlScript, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(baseDir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		scripts = append(scripts, sqlScript{name: name, content: string(content)})
	}

	return scripts, nil
}
