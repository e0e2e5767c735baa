package config

import "time"

// CachePolicy is a hint for the transport-level HTTP cache.
type CachePolicy string

const (
	// CachePolicyReturnCacheElseLoad prefers any cached response, even stale, before reloading.
	CachePolicyReturnCacheElseLoad CachePolicy = "return-cache-else-load"

	// CachePolicyReload always asks the origin.
	CachePolicyReload CachePolicy = "reload"
)

type LoaderCfg struct {
	// MaxConnections caps simultaneous downloads.
	MaxConnections int `yaml:"max_connections"`

	// RequestTimeout bounds waiting for response headers.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ResourceTimeout bounds a whole download including the body.
	ResourceTimeout time.Duration `yaml:"resource_timeout"`

	// CachePolicy is sent to intermediaries as a Cache-Control request header.
	// Supported values:
	//   - "return-cache-else-load"
	//   - "reload"
	CachePolicy CachePolicy `yaml:"cache_policy"`

	// UserAgent overrides the default User-Agent header.
	UserAgent string `yaml:"user_agent"`
}
