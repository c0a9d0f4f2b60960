// Package cache provides the two-tier cache for FoxESS Cloud responses:
// a bounded in-memory tier with automatic expiry, backed by an optional
// encrypted-at-rest disk tier. Expiry is checked lazily at read time;
// SweepExpired reclaims disk space outside the request path.
package cache

import "time"

// Data types with a dedicated TTL class. Anything else falls back to the
// store's default TTL.
const (
	TypeRealtime   = "realtime"
	TypeHistorical = "historical"
	TypeDiagnosis  = "diagnosis"
	TypeForecast   = "forecast"
	TypeDeviceInfo = "device_info"
)

// MaxFileSize is the largest serialized payload the disk tier accepts.
// Oversized payloads stay memory-only on write and are deleted on read.
const MaxFileSize = 10 * 1024 * 1024

// DefaultTTL applies to data types without a dedicated TTL class.
const DefaultTTL = 300 * time.Second

var ttlByType = map[string]time.Duration{
	TypeRealtime:   180 * time.Second,
	TypeHistorical: 3600 * time.Second,
	TypeDiagnosis:  1800 * time.Second,
	TypeForecast:   1800 * time.Second,
	TypeDeviceInfo: 86400 * time.Second,
}

// TTLFor returns the TTL class for a data type, or fallback when the type
// has no dedicated class.
func TTLFor(dataType string, fallback time.Duration) time.Duration {
	if ttl, ok := ttlByType[dataType]; ok {
		return ttl
	}
	return fallback
}

// Stats describes the current state of both cache tiers.
type Stats struct {
	MemoryEntries int    `json:"memory_entries"`
	MemoryMax     int    `json:"memory_max"`
	DiskEntries   int    `json:"disk_entries"`
	DiskBytes     int64  `json:"disk_bytes"`
	Directory     string `json:"directory"`
	Encrypted     bool   `json:"encrypted"`
}

// metadata is the sidecar record written next to every disk payload.
type metadata struct {
	Created   float64 `json:"created"`
	TTL       int     `json:"ttl"`
	DataType  string  `json:"data_type"`
	CacheKey  string  `json:"cache_key"`
	Encrypted bool    `json:"encrypted"`
}
