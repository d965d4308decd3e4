package store

import (
	"fmt"

	"ticket-service/internal/redisclient"
)

// Options selects and configures a RecordStore driver
type Options struct {
	Driver      string // sqlite|postgres|redis|fs|memory
	SQLitePath  string
	DatabaseURL string
	FSRoot      string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Open builds the RecordStore named by opts.Driver (default sqlite)
func Open(opts Options) (RecordStore, error) {
	switch opts.Driver {
	case "", "sqlite":
		path := opts.SQLitePath
		if path == "" {
			path = "data/tickets.db"
		}
		return openSQL("sqlite", path)
	case "postgres":
		return openSQL("postgres", opts.DatabaseURL)
	case "redis":
		client, err := redisclient.NewClient(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
		if err != nil {
			return nil, err
		}
		return client, nil
	case "fs":
		fs, err := NewFileStore(opts.FSRoot)
		if err != nil {
			return nil, err
		}
		return fs, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %s", opts.Driver)
	}
}

func openSQL(driver, dsn string) (RecordStore, error) {
	s, err := NewSQLStore(driver, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}
