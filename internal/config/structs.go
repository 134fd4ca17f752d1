package config

import (
	"time"

	"github.com/quillblog/quill/internal/logger"
)

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	Cache     Cache
	History   History
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover bool     // disable recover middleware
	Port           int      // listening port for the webserver
	ShutDownTime   int      // wait time for shutdown
	URL            string   // base url for the webserver
	AllowOrigins   []string // CORS origins of the admin panel and the public site
	CheckAliveURI  string   // path answering load balancer health checks
	BodyLimit      int      // max request body size in bytes
}

// Cache configures the settings snapshot cache.
type Cache struct {
	Backend        CacheBackend  // memory, redis, mysql or postgres
	TTL            time.Duration // snapshots younger than this are served without a fetch
	RefreshTimeout time.Duration // timeout of a background revalidation
	Retention      time.Duration // how long a backend keeps a snapshot after it turned stale
	Key            string        // storage key of the snapshot
	Table          string        // table used by the sql backends
	Redis          Redis
}

// Redis holds the redis connection settings of the redis cache backend.
type Redis struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// History configures history pagination.
type History struct {
	DefaultLimit int // page size when the request has none
	MaxLimit     int // upper bound for requested page sizes
}
