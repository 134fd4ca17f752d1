// Package config handles input from etc/*.toml files
package config

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. QUILL_WEBSERVER_PORT.
	EnvPrefix = "QUILL"

	// EnvConfigJSON holds a JSON document merged over the file configuration.
	EnvConfigJSON = "QUILL_CONFIG_JSON"

	defaultShutDownTime    = 5
	defaultCacheTTL        = time.Hour
	defaultRefreshTimeout  = 10 * time.Second
	defaultCacheRetention  = 24 * time.Hour
	defaultCacheKey        = "settings:snapshot"
	defaultCacheTable      = "settings_cache"
	defaultHistoryLimit    = 20
	defaultHistoryMaxLimit = 100
	defaultBodyLimit       = 4 * 1024 * 1024
	defaultCheckAliveURI   = "/checkalive"
)

// ReadConfig from config file.
func ReadConfig(path string) (Config, error) {
	var (
		c             Config
		JSONConfigEnv string
		err           error
	)

	// Read main configuration
	if path == "" {
		path = "./etc/"
	}

	v := viper.New()
	v.SetConfigName("main")
	v.SetConfigType("toml")
	v.AddConfigPath(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	if err = v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	// override it from env
	JSONConfigEnv = os.Getenv(EnvConfigJSON)

	if JSONConfigEnv != "" {
		c, err = decodeAndMergeConfig(c, JSONConfigEnv)
		if err != nil {
			return c, err
		}
	}

	return c, validate(&c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("title", "quill")
	v.SetDefault("db.driver", string(DriverSQLite))
	v.SetDefault("webserver.shutdowntime", defaultShutDownTime)
	v.SetDefault("webserver.checkaliveuri", defaultCheckAliveURI)
	v.SetDefault("webserver.bodylimit", defaultBodyLimit)
	v.SetDefault("cache.backend", string(CacheMemory))
	v.SetDefault("cache.ttl", defaultCacheTTL)
	v.SetDefault("cache.refreshtimeout", defaultRefreshTimeout)
	v.SetDefault("cache.retention", defaultCacheRetention)
	v.SetDefault("cache.key", defaultCacheKey)
	v.SetDefault("cache.table", defaultCacheTable)
	v.SetDefault("history.defaultlimit", defaultHistoryLimit)
	v.SetDefault("history.maxlimit", defaultHistoryMaxLimit)
	v.SetDefault("log.loglevel", "info")
	v.SetDefault("log.appname", "quill")
	v.SetDefault("log.servicename", "settings")
}

func decodeAndMergeConfig(c Config, configAsJSON string) (Config, error) {
	err := json.Unmarshal([]byte(configAsJSON), &c)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	return c, nil
}

// DumpConfig config as TOML String.
func DumpConfig(c *Config) (string, error) {
	var buffer bytes.Buffer
	t := toml.NewEncoder(&buffer)

	if err := t.Encode(c); err != nil {
		return "", err //nolint: wrapcheck
	}

	return buffer.String(), nil
}

// validate minimal config settings and fill in defaults the file left out.
func validate(c *Config) error {
	invalidErrMessage := "invalid config"

	// validate webserver listening port
	if c.Webserver.Port == 0 {
		return errors.Wrap(ErrWebServerPortCanNotBeZero, invalidErrMessage)
	}

	if c.Webserver.URL == "" {
		return errors.Wrap(ErrEmptyURL, invalidErrMessage)
	}

	switch c.DB.Driver {
	case DriverSQLite, DriverMySQL, DriverPostgres:
	case "":
		c.DB.Driver = DriverSQLite
	default:
		return errors.Wrapf(ErrUnsupportedDriver, "%s: %q", invalidErrMessage, c.DB.Driver)
	}

	switch c.Cache.Backend {
	case CacheMemory, CacheRedis:
	case "":
		c.Cache.Backend = CacheMemory
	case CacheMySQL, CachePostgres:
		if string(c.Cache.Backend) != string(c.DB.Driver) {
			return errors.Wrap(ErrCacheBackendNeedsDriver, invalidErrMessage)
		}
	default:
		return errors.Wrapf(ErrUnsupportedCacheBackend, "%s: %q", invalidErrMessage, c.Cache.Backend)
	}

	if c.Webserver.ShutDownTime == 0 {
		c.Webserver.ShutDownTime = defaultShutDownTime
	}

	if c.Webserver.CheckAliveURI == "" {
		c.Webserver.CheckAliveURI = defaultCheckAliveURI
	}

	if c.Webserver.BodyLimit == 0 {
		c.Webserver.BodyLimit = defaultBodyLimit
	}

	if c.Cache.TTL <= 0 {
		c.Cache.TTL = defaultCacheTTL
	}

	if c.Cache.RefreshTimeout <= 0 {
		c.Cache.RefreshTimeout = defaultRefreshTimeout
	}

	if c.Cache.Retention < 0 {
		c.Cache.Retention = 0
	}

	if c.Cache.Key == "" {
		c.Cache.Key = defaultCacheKey
	}

	if c.Cache.Table == "" {
		c.Cache.Table = defaultCacheTable
	}

	if c.History.DefaultLimit <= 0 {
		c.History.DefaultLimit = defaultHistoryLimit
	}

	if c.History.MaxLimit < c.History.DefaultLimit {
		c.History.MaxLimit = max(defaultHistoryMaxLimit, c.History.DefaultLimit)
	}

	return nil
}
