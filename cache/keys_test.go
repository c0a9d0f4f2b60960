package cache

import (
	"strings"
	"testing"
	"time"
)

func TestBuildKeyDeterministic(t *testing.T) {
	params := map[string]string{"start": "2024-01-01", "end": "2024-01-02", "vars": "pv_power"}
	// Same logical params assembled in a different order.
	reordered := map[string]string{"vars": "pv_power", "end": "2024-01-02", "start": "2024-01-01"}

	a := BuildKey("historical", "SN1234567890", params)
	b := BuildKey("historical", "SN1234567890", reordered)
	if a != b {
		t.Errorf("identical params produced different keys:\n%s\n%s", a, b)
	}
	if !strings.HasPrefix(a, "foxess:historical:") {
		t.Errorf("key %q missing operation prefix", a)
	}
}

func TestBuildKeyChangesWithAnyInput(t *testing.T) {
	base := BuildKey("historical", "SN1234567890", map[string]string{"vars": "pv_power"})

	tests := []struct {
		name string
		key  string
	}{
		{"operation", BuildKey("realtime", "SN1234567890", map[string]string{"vars": "pv_power"})},
		{"device", BuildKey("historical", "SN0987654321", map[string]string{"vars": "pv_power"})},
		{"param value", BuildKey("historical", "SN1234567890", map[string]string{"vars": "loads_power"})},
		{"extra param", BuildKey("historical", "SN1234567890", map[string]string{"vars": "pv_power", "dim": "day"})},
	}
	for _, tt := range tests {
		if tt.key == base {
			t.Errorf("changing %s did not change the key", tt.name)
		}
	}
}

func TestRealtimeKeyBucketsByMinute(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 30, 5, 0, time.UTC)
	sameMinute := at.Add(40 * time.Second)
	nextMinute := at.Add(60 * time.Second)

	a := RealtimeKey("SN1234567890", []string{"pv_power", "soc_1"}, at)
	if b := RealtimeKey("SN1234567890", []string{"soc_1", "pv_power"}, sameMinute); b != a {
		t.Errorf("same minute and variables produced different keys:\n%s\n%s", a, b)
	}
	if c := RealtimeKey("SN1234567890", []string{"pv_power", "soc_1"}, nextMinute); c == a {
		t.Error("next minute produced the same key")
	}
	if all := RealtimeKey("SN1234567890", nil, at); !strings.HasSuffix(all, ":all") {
		t.Errorf("empty variable list should key as \"all\", got %q", all)
	}
}

func TestHistoricalKey(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	a := HistoricalKey("SN1234567890", start, end, []string{"pv_power"}, "hour")
	if b := HistoricalKey("SN1234567890", start, end, []string{"pv_power"}, "hour"); b != a {
		t.Error("identical historical queries produced different keys")
	}
	if c := HistoricalKey("SN1234567890", start, end, []string{"pv_power"}, "day"); c == a {
		t.Error("different dimension produced the same key")
	}
	if d := HistoricalKey("SN1234567890", start, end.Add(time.Hour), []string{"pv_power"}, "hour"); d == a {
		t.Error("different end time produced the same key")
	}
}

func TestDiagnosisKeyBucketsByHour(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 10, 0, 0, time.UTC)
	a := DiagnosisKey("SN1234567890", "health", at)
	if b := DiagnosisKey("SN1234567890", "health", at.Add(30*time.Minute)); b != a {
		t.Error("same hour produced different keys")
	}
	if c := DiagnosisKey("SN1234567890", "health", at.Add(time.Hour)); c == a {
		t.Error("next hour produced the same key")
	}
}

func TestForecastKeyBucketsByDay(t *testing.T) {
	at := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	a := ForecastKey("SN1234567890", "daily", false, at)
	if b := ForecastKey("SN1234567890", "daily", false, at.Add(6*time.Hour)); b != a {
		t.Error("same day produced different keys")
	}
	if c := ForecastKey("SN1234567890", "daily", true, at); c == a {
		t.Error("weather flag did not change the key")
	}
	if d := ForecastKey("SN1234567890", "daily", false, at.Add(24*time.Hour)); d == a {
		t.Error("next day produced the same key")
	}
}
