package publish

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBase64URLEncodeNoPadding(t *testing.T) {
	// Lengths chosen so standard base64 would pad with = signs.
	inputs := [][]byte{
		[]byte("a"),
		[]byte("ab"),
		[]byte("abc"),
		[]byte(`{"alg":"RS256"}`),
	}
	for _, in := range inputs {
		got := base64URLEncode(in)
		if strings.ContainsAny(got, "=+/") {
			t.Errorf("base64URLEncode(%q) = %q, contains padding or non-url chars", in, got)
		}
	}
}

func TestSignJWT(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	iat := time.Now().Add(-60 * time.Second)
	exp := time.Now().Add(5 * time.Minute)

	token, err := signJWT(4242, iat, exp, key)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("JWT has %d segments, want 3", len(parts))
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		t.Fatalf("decode header: %v", err)
	}
	var header map[string]string
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if header["alg"] != "RS256" || header["typ"] != "JWT" {
		t.Errorf("header = %v, want alg RS256 typ JWT", header)
	}

	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var payload struct {
		Iss int64 `json:"iss"`
		Iat int64 `json:"iat"`
		Exp int64 `json:"exp"`
	}
	if err := json.Unmarshal(payloadJSON, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Iss != 4242 {
		t.Errorf("iss = %d, want 4242", payload.Iss)
	}
	if payload.Exp <= payload.Iat {
		t.Errorf("exp %d should be after iat %d", payload.Exp, payload.Iat)
	}

	// The signature must verify against the signing input.
	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	if err := rsa.VerifyPKCS1v15(&key.PublicKey, crypto.SHA256, digest[:], sig); err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}
