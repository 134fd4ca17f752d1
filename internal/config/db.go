package config

// DriverType represents the type of database driver.
type DriverType string

const (
	// DriverSQLite is the pure go SQLite driver.
	DriverSQLite DriverType = "sqlite"
	// DriverMySQL is the MySQL driver.
	DriverMySQL DriverType = "mysql"
	// DriverPostgres is the PostgreSQL driver.
	DriverPostgres DriverType = "postgres"
)

// CacheBackend selects where settings snapshots are kept.
type CacheBackend string

const (
	// CacheMemory keeps snapshots in process.
	CacheMemory CacheBackend = "memory"
	// CacheRedis shares snapshots through redis.
	CacheRedis CacheBackend = "redis"
	// CacheMySQL shares snapshots through a MySQL table.
	CacheMySQL CacheBackend = "mysql"
	// CachePostgres shares snapshots through a PostgreSQL table.
	CachePostgres CacheBackend = "postgres"
)

// DB holds the database configuration settings.
type DB struct {
	Driver   DriverType
	Path     string // sqlite file or directory
	Extras   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Debug    bool // log every SQL statement
}
