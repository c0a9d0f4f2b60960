package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"
)

// BuildKey builds a deterministic cache key from an operation, a device
// serial and auxiliary parameters. Parameters are sorted by name so the key
// is stable regardless of how the caller assembled the map.
func BuildKey(operation, deviceSN string, params map[string]string) string {
	parts := []string{operation, deviceSN}
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		parts = append(parts, k+"="+params[k])
	}
	return fmt.Sprintf("foxess:%s:%s", operation, shortHash(strings.Join(parts, "|")))
}

// RealtimeKey buckets realtime lookups into the current minute so several
// reads within the same minute share one upstream call.
func RealtimeKey(deviceSN string, variables []string, at time.Time) string {
	minute := at.Unix() / 60 * 60
	return fmt.Sprintf("realtime:%s:%d:%s", deviceSN, minute, variableKey(variables))
}

// HistoricalKey keys a historical query by its full time range, variable set
// and dimension. Long components are hashed to keep keys bounded.
func HistoricalKey(deviceSN string, start, end time.Time, variables []string, dimension string) string {
	parts := []string{
		deviceSN,
		start.UTC().Format(time.RFC3339),
		end.UTC().Format(time.RFC3339),
		variableKey(variables),
		dimension,
	}
	return fmt.Sprintf("historical:%s:%s", deviceSN, shortHash(strings.Join(parts, "|")))
}

// DiagnosisKey buckets diagnosis results into the current hour.
func DiagnosisKey(deviceSN, checkType string, at time.Time) string {
	hour := at.Unix() / 3600 * 3600
	return fmt.Sprintf("diagnosis:%s:%s:%d", deviceSN, checkType, hour)
}

// ForecastKey buckets forecasts into the current day.
func ForecastKey(deviceSN, forecastType string, weather bool, at time.Time) string {
	day := at.Unix() / 86400 * 86400
	weatherKey := "no_weather"
	if weather {
		weatherKey = "weather"
	}
	return fmt.Sprintf("forecast:%s:%s:%s:%d", deviceSN, forecastType, weatherKey, day)
}

func variableKey(variables []string) string {
	if len(variables) == 0 {
		return "all"
	}
	sorted := make([]string, len(variables))
	copy(sorted, variables)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum)[:32]
}
