// Package store persists refresh history and request audit records.
// The exported snapshot itself is never stored.
package store

import (
	"fmt"
	"sort"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/port"
)

// DriverConfig selects and configures a history driver.
type DriverConfig struct {
	// Driver is one of memory, postgres, sqlite.
	Driver string

	// DatabaseURL is the postgres connection string.
	DatabaseURL string

	// SQLitePath is the sqlite database file.
	SQLitePath string

	// Limit caps the number of records kept per kind by the memory driver.
	Limit int
}

// DriverFactory creates a history store.
type DriverFactory func(cfg DriverConfig) (port.HistoryStore, error)

var drivers = map[string]DriverFactory{
	"memory":   func(cfg DriverConfig) (port.HistoryStore, error) { return NewMemoryStore(cfg.Limit), nil },
	"postgres": func(cfg DriverConfig) (port.HistoryStore, error) {
		s, err := NewPostgresStore(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	},
	"sqlite": func(cfg DriverConfig) (port.HistoryStore, error) {
		s, err := NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	},
}

// New creates the configured store. An empty driver name means memory.
func New(cfg DriverConfig) (port.HistoryStore, error) {
	name := cfg.Driver
	if name == "" {
		name = "memory"
	}

	factory, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", port.ErrUnknownDriver, name)
	}
	return factory(cfg)
}

// AvailableDrivers returns the registered driver names, sorted.
func AvailableDrivers() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
