package store

import "fmt"

// Backend names accepted by Open.
const (
	BackendDapr   = "dapr"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Options selects and configures a binding store backend.
type Options struct {
	Backend string
	Dapr    DaprConfig
	Redis   RedisConfig
	DBPath  string
}

// Open constructs the backend named by opts.Backend.
func Open(opts Options) (BindingStore, error) {
	var (
		s   BindingStore
		err error
	)
	switch opts.Backend {
	case BackendDapr:
		s, err = NewDapr(opts.Dapr)
	case BackendRedis:
		s, err = NewRedis(opts.Redis)
	case BackendSQLite:
		s, err = NewSQLite(opts.DBPath)
	default:
		return nil, fmt.Errorf("unknown session store backend %q", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Backend, err)
	}
	return s, nil
}
