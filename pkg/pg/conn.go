package pg

import (
	"database/sql"
	"fmt"
	"net/url"
	"time"
)

type Config struct {
	User     string
	Host     string
	Port     string
	Password string
	Database string
	SSLMode  string
	MaxOpen  int
}

// DSN renders the connection as a postgres URL so passwords with spaces or
// quotes survive.
func (c Config) DSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String()
}

// String is the DSN without the password, for logs.
func (c Config) String() string {
	return fmt.Sprintf("postgres://%s@%s:%s/%s", c.User, c.Host, c.Port, c.Database)
}

func configurePool(db *sql.DB, c Config) {
	maxOpen := c.MaxOpen
	if maxOpen <= 0 {
		maxOpen = 10
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(max(maxOpen/2, 1))
	db.SetConnMaxIdleTime(5 * time.Minute)
}

func newSqlConnection(c Config) (*sql.DB, error) {
	return sql.Open("postgres", c.DSN())
}
