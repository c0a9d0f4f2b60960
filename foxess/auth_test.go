package foxess

import (
	"errors"
	"testing"
	"time"
)

const (
	testToken = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	testSN    = "ABC1234567890"
)

func TestNewCredential(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		sn      string
		wantErr bool
	}{
		{"valid pair", testToken, testSN, false},
		{"uppercase hex token", "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE", testSN, false},
		{"minimum length serial", testToken, "ABCDE12345", false},
		{"maximum length serial", testToken, "ABCDE123456789012345", false},
		{"token not a uuid", "not-a-uuid", testSN, true},
		{"token missing group", "aaaaaaaa-bbbb-cccc-dddd", testSN, true},
		{"token non-hex", "zzzzzzzz-bbbb-cccc-dddd-eeeeeeeeeeee", testSN, true},
		{"serial too short", testToken, "short", true},
		{"serial too long", testToken, "ABCDE1234567890123456", true},
		{"serial lowercase", testToken, "abc1234567890", true},
		{"empty token", "", testSN, true},
		{"empty serial", testToken, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCredential(tt.token, tt.sn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewCredential(%q, %q) error = %v, wantErr %v", tt.token, tt.sn, err, tt.wantErr)
			}
			if err != nil {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("error type = %T, want *ConfigError", err)
				}
			}
		})
	}
}

func TestSignatureKnownVectors(t *testing.T) {
	cred, err := NewCredential(testToken, testSN)
	if err != nil {
		t.Fatal(err)
	}

	// Vectors computed independently from the documented construction
	// MD5(path + "\r\n" + token + "\r\n" + millis).
	tests := []struct {
		path   string
		millis int64
		want   string
	}{
		{"/op/v0/device/real/query", 1700000000000, "16d10b538b59424295a156fdb33bf80f"},
		{"/op/v0/device/list", 1700000000000, "89d2c84c4024b4e58aef4d36bb984b77"},
	}
	for _, tt := range tests {
		if got := cred.Signature(tt.path, tt.millis); got != tt.want {
			t.Errorf("Signature(%q, %d) = %s, want %s", tt.path, tt.millis, got, tt.want)
		}
	}
}

func TestSignatureIsPureFunction(t *testing.T) {
	cred, err := NewCredential(testToken, testSN)
	if err != nil {
		t.Fatal(err)
	}
	base := cred.Signature("/op/v0/device/list", 1700000000000)

	if again := cred.Signature("/op/v0/device/list", 1700000000000); again != base {
		t.Error("identical inputs produced different signatures")
	}
	if cred.Signature("/op/v0/device/detail", 1700000000000) == base {
		t.Error("changing the path did not change the signature")
	}
	if cred.Signature("/op/v0/device/list", 1700000000001) == base {
		t.Error("changing the timestamp did not change the signature")
	}

	other, err := NewCredential("ffffffff-bbbb-cccc-dddd-eeeeeeeeeeee", testSN)
	if err != nil {
		t.Fatal(err)
	}
	if other.Signature("/op/v0/device/list", 1700000000000) == base {
		t.Error("changing the secret did not change the signature")
	}
}

func TestHeaders(t *testing.T) {
	cred, err := NewCredential(testToken, testSN)
	if err != nil {
		t.Fatal(err)
	}

	at := time.UnixMilli(1700000000000)
	h := cred.Headers("/op/v0/device/list", "en", at)

	if got := h.Get("token"); got != testToken {
		t.Errorf("token header = %q", got)
	}
	if got := h.Get("timestamp"); got != "1700000000000" {
		t.Errorf("timestamp header = %q", got)
	}
	if got := h.Get("signature"); got != "89d2c84c4024b4e58aef4d36bb984b77" {
		t.Errorf("signature header = %q", got)
	}
	if got := h.Get("lang"); got != "en" {
		t.Errorf("lang header = %q", got)
	}
	if got := h.Get("Content-Type"); got != "application/json" {
		t.Errorf("content type = %q", got)
	}
}

func TestMaskToken(t *testing.T) {
	cred, err := NewCredential(testToken, testSN)
	if err != nil {
		t.Fatal(err)
	}

	masked := cred.MaskToken("request with token " + testToken + " failed")
	if masked != "request with token aaaaaaaa****eeee failed" {
		t.Errorf("MaskToken = %q", masked)
	}
	if unrelated := cred.MaskToken("nothing to mask"); unrelated != "nothing to mask" {
		t.Errorf("MaskToken altered unrelated text: %q", unrelated)
	}
}

func TestDeviceSN(t *testing.T) {
	cred, err := NewCredential(testToken, testSN)
	if err != nil {
		t.Fatal(err)
	}
	if cred.DeviceSN() != testSN {
		t.Errorf("DeviceSN() = %q", cred.DeviceSN())
	}
}
