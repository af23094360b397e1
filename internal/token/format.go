package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"lattice-agent/pkg/uid"
)

// Version is the token format version; it is part of the signed message.
const Version = "v2"

// DayLayout is the yyyyMMdd layout of token days.
const DayLayout = "20060102"

const (
	idBytes  = 16
	sigBytes = sha256.Size
)

// Parsed holds the fields of a composed token string.
type Parsed struct {
	Namespace string
	Day       string
	ID        string
	Signature string
}

// NewID returns a fresh 32-hex token id.
func NewID() (string, error) {
	id, err := uid.Hex(idBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate token id: %w", err)
	}
	return id, nil
}

// Sign computes the hex HMAC-SHA256 of "ns|version|day|id".
func Sign(secret []byte, ns, day, id string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.Join([]string{ns, Version, day, id}, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Compose builds the token string handed to players.
func Compose(ns, day, id, sig string) string {
	return strings.Join([]string{ns, Version, day, id, sig}, ".")
}

// Parse splits a token string and checks field shapes. It does not verify
// the signature.
func Parse(raw, ns string) (Parsed, error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 5 {
		return Parsed{}, ErrMalformed
	}
	p := Parsed{Namespace: parts[0], Day: parts[2], ID: parts[3], Signature: parts[4]}

	if p.Namespace != ns || parts[1] != Version {
		return Parsed{}, ErrMalformed
	}
	if _, err := time.Parse(DayLayout, p.Day); err != nil || len(p.Day) != len(DayLayout) {
		return Parsed{}, ErrMalformed
	}
	if !isHex(p.ID, idBytes) || !isHex(p.Signature, sigBytes) {
		return Parsed{}, ErrMalformed
	}
	return p, nil
}

// Verify reports whether p carries a valid signature under secret.
func Verify(secret []byte, p Parsed) bool {
	want := Sign(secret, p.Namespace, p.Day, p.ID)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(p.Signature)))
}

// DayOf formats t's calendar day in loc.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}

// NextMidnight returns the first instant of the day after t in loc.
func NextMidnight(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, loc)
}

func isHex(s string, n int) bool {
	if len(s) != n*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
