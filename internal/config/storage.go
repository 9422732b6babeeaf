package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// quoteDSNValue quotes a value for the PostgreSQL key=value DSN format so
// passwords with spaces or quotes survive parsing.
func quoteDSNValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return "'" + s + "'"
}

// PostgresConnectionString returns the DSN for the pgx driver.
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresUser,
		quoteDSNValue(c.PostgresPassword),
		c.PostgresDBName,
		c.PostgresSSLMode,
	)
}

// PostgresURL returns the URL form used by golang-migrate. url.URL encodes
// special characters in the credentials.
func (c *Config) PostgresURL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:     fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:     c.PostgresDBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.PostgresSSLMode),
	}
	return u.String()
}

// parseDatabaseURL applies DATABASE_URL on top of the individual postgres_*
// settings. The single-URL form is the common cloud deployment convention.
func (c *Config) parseDatabaseURL() error {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil
	}

	parsed, err := url.Parse(dbURL)
	if err != nil {
		return fmt.Errorf("invalid DATABASE_URL format: %w", err)
	}
	if parsed.Scheme != "postgres" && parsed.Scheme != "postgresql" {
		return fmt.Errorf("unsupported DATABASE_URL scheme %q", parsed.Scheme)
	}

	c.PostgresHost = parsed.Hostname()
	if portStr := parsed.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid DATABASE_URL port %q: %w", portStr, err)
		}
		c.PostgresPort = port
	}
	if parsed.User != nil {
		c.PostgresUser = parsed.User.Username()
		if password, ok := parsed.User.Password(); ok {
			c.PostgresPassword = password
		}
	}
	if dbName := strings.TrimPrefix(parsed.Path, "/"); dbName != "" {
		c.PostgresDBName = dbName
	}
	if sslMode := parsed.Query().Get("sslmode"); sslMode != "" {
		c.PostgresSSLMode = sslMode
	}
	return nil
}
