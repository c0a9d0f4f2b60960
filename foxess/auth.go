// Package foxess talks to the FoxESS Cloud OpenAPI: credential validation,
// request signing, rate limiting and the client façade that composes them
// with the response cache.
package foxess

import (
	"crypto/md5"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	tokenPattern    = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	deviceSNPattern = regexp.MustCompile(`^[A-Z0-9]{10,20}$`)
)

// Credential is the validated API token / device serial pair. Construct it
// with NewCredential; a zero Credential signs nothing useful.
type Credential struct {
	token    string
	deviceSN string
}

// NewCredential validates the credential pair. The token must be UUID-shaped
// (8-4-4-4-12 hex groups) and the serial 10-20 uppercase alphanumerics;
// either failing is a fatal ConfigError, not something to retry.
func NewCredential(token, deviceSN string) (Credential, error) {
	if !tokenPattern.MatchString(token) {
		return Credential{}, &ConfigError{
			Field:  "FOXESS_API_KEY",
			Reason: "token must be UUID format: xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx",
		}
	}
	if !deviceSNPattern.MatchString(deviceSN) {
		return Credential{}, &ConfigError{
			Field:  "FOXESS_DEVICE_SN",
			Reason: "device serial must be 10-20 uppercase alphanumeric characters",
		}
	}
	return Credential{token: token, deviceSN: deviceSN}, nil
}

// DeviceSN returns the configured device serial.
func (c Credential) DeviceSN() string {
	return c.deviceSN
}

// Signature computes the FoxESS request signature for an endpoint path and a
// millisecond timestamp: MD5(path + "\r\n" + token + "\r\n" + millis).
// The upstream contract mandates this exact construction, including MD5 and
// the endpoint path (not the full URL) as the signed component.
func (c Credential) Signature(path string, timestampMillis int64) string {
	input := path + "\r\n" + c.token + "\r\n" + strconv.FormatInt(timestampMillis, 10)
	return fmt.Sprintf("%x", md5.Sum([]byte(input)))
}

// Headers builds the authentication headers for a call to path. Every call
// gets a fresh timestamp and signature; they are never reused.
func (c Credential) Headers(path, lang string, at time.Time) http.Header {
	millis := at.UnixMilli()
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("token", c.token)
	h.Set("timestamp", strconv.FormatInt(millis, 10))
	h.Set("signature", c.Signature(path, millis))
	h.Set("lang", lang)
	return h
}

// MaskToken replaces occurrences of the token in text with a masked form
// showing only the first 8 and last 4 characters, for safe logging.
func (c Credential) MaskToken(text string) string {
	if c.token == "" || !strings.Contains(text, c.token) {
		return text
	}
	masked := c.token[:8] + "****" + c.token[len(c.token)-4:]
	return strings.ReplaceAll(text, c.token, masked)
}
