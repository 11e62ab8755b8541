package persistence

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore owns a PostgreSQL connection pool. It does not own any
// schema itself: callers reuse DB() to run their own migrations and
// queries against the same pool (see pkg/tlsport/audit), rather than each
// opening a second connection.
type PostgresStore struct {
	db *sql.DB
}

// Config holds database configuration
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewPostgresStore opens and pings a PostgreSQL connection pool.
func NewPostgresStore(config Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host,
		config.Port,
		config.User,
		config.Password,
		config.DBName,
		config.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	log.Println("PostgreSQL connection established")
	return &PostgresStore{db: db}, nil
}

// DB returns the underlying connection pool, for packages that need to run
// their own migrations/queries against the same database (e.g.
// pkg/tlsport/audit) without duplicating connection setup.
func (ps *PostgresStore) DB() *sql.DB {
	return ps.db
}

// Close closes the database connection
func (ps *PostgresStore) Close() error {
	log.Println("Closing PostgreSQL connection")
	return ps.db.Close()
}
