package store

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/jensholdgaard/player-auction/internal/clock"
	"github.com/jensholdgaard/player-auction/internal/config"
	"github.com/jensholdgaard/player-auction/internal/event"
)

// Repositories groups all repository implementations returned by a store driver.
type Repositories struct {
	Tournaments TournamentRepository
	Rosters     RosterRepository
	States      StateRepository
	Indexes     IndexRepository
	Events      event.Store
	// Closer releases underlying resources. It is nil for the memory driver.
	Closer io.Closer
	// Ping checks the underlying connection health.
	Ping func(ctx context.Context) error
}

// Options carries the configuration sections a driver may need.
type Options struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	Audit    config.AuditConfig
	Clock    clock.Clock
}

// Driver is a function that opens a connection and returns Repositories.
type Driver func(ctx context.Context, opts Options) (*Repositories, error)

// registry maps driver names to their factory functions.
var registry = map[string]Driver{}

// Register adds a named driver to the global registry.
// It is intended to be called from init() in each driver package.
func Register(name string, d Driver) {
	registry[name] = d
}

// Open selects the driver named by opts.Database.Driver and returns Repositories.
func Open(ctx context.Context, opts Options) (*Repositories, error) {
	d, ok := registry[opts.Database.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (registered: %v)", opts.Database.Driver, registeredNames())
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return d(ctx, opts)
}

func registeredNames() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
