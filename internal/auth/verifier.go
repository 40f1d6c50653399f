// Package auth verifies bearer tokens for the admin endpoints of the API server.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Modes accepted by New.
const (
	ModeNone = "none"
	ModeHMAC = "hmac"
)

// RoleAdmin is the role required by admin endpoints.
const RoleAdmin = "admin"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrBadSignature = errors.New("bad signature")
	ErrExpired      = errors.New("token expired")
)

// Principal is the verified caller.
type Principal struct {
	Subject string
	Role    string
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// Verifier validates HS256 JWTs. In ModeNone every caller is an anonymous admin.
type Verifier struct {
	Mode      string
	Secret    []byte
	RoleClaim string
	Now       func() time.Time
}

// New returns a verifier for mode.
func New(mode, secret string) (*Verifier, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	switch mode {
	case "", ModeNone:
		mode = ModeNone
	case ModeHMAC:
		if secret == "" {
			return nil, errors.New("hmac mode needs a secret")
		}
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", mode)
	}
	return &Verifier{Mode: mode, Secret: []byte(secret), RoleClaim: "role", Now: time.Now}, nil
}

// FromHeader verifies the token of an Authorization header value.
func (v *Verifier) FromHeader(authz string) (Principal, error) {
	if v.Mode == ModeNone {
		return Principal{Subject: "anonymous", Role: RoleAdmin}, nil
	}
	if len(authz) < len("bearer ") || !strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return Principal{}, ErrMissingToken
	}
	return v.Verify(strings.TrimSpace(authz[len("bearer "):]))
}

// Verify checks signature and expiry of token and extracts its principal.
func (v *Verifier) Verify(token string) (Principal, error) {
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, fmt.Errorf("jwt header: %w", err)
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, fmt.Errorf("jwt payload: %w", err)
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, fmt.Errorf("jwt signature: %w", err)
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, fmt.Errorf("jwt header: %w", err)
	}
	if hdr.Alg != "HS256" {
		return Principal{}, fmt.Errorf("unsupported alg %q", hdr.Alg)
	}
	if !hmac.Equal(v.sign(segs[0]+"."+segs[1]), sig) {
		return Principal{}, ErrBadSignature
	}

	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, fmt.Errorf("jwt claims: %w", err)
	}
	if exp, ok := claims["exp"].(float64); ok && v.Now().Unix() >= int64(exp) {
		return Principal{}, ErrExpired
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims[v.RoleClaim].(string)
	if role == "" {
		role = "user"
	}
	return Principal{Subject: sub, Role: strings.ToLower(role)}, nil
}

// Sign issues an HS256 token for claims. Used by tooling and tests.
func (v *Verifier) Sign(claims map[string]any) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := b64urlEncode([]byte(`{"alg":"HS256","typ":"JWT"}`)) + "." + b64urlEncode(payload)
	return input + "." + b64urlEncode(v.sign(input)), nil
}

func (v *Verifier) sign(input string) []byte {
	mac := hmac.New(sha256.New, v.Secret)
	mac.Write([]byte(input))
	return mac.Sum(nil)
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }

func b64urlEncode(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }
