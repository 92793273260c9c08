// Package auth verifies Telegram Login Widget assertions.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MaxAge is how long a signed login assertion stays valid
const MaxAge = 24 * time.Hour

// FlexInt accepts a JSON number or a numeric string
type FlexInt int64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = FlexInt(v)
	return nil
}

// Payload is the signed data the login widget hands to the browser
type Payload struct {
	ID        FlexInt `json:"id" validate:"required"`
	FirstName string  `json:"first_name" validate:"required"`
	LastName  string  `json:"last_name,omitempty"`
	Username  string  `json:"username,omitempty"`
	PhotoURL  string  `json:"photo_url,omitempty"`
	AuthDate  FlexInt `json:"auth_date" validate:"required"`
	Hash      string  `json:"hash" validate:"required,hexadecimal"`
}

// AuthTime returns auth_date as a time
func (p *Payload) AuthTime() time.Time {
	return time.Unix(int64(p.AuthDate), 0).UTC()
}

// DataCheckString builds the canonical string Telegram signs: every present
// field except hash as key=value, sorted by key and joined by newlines.
func DataCheckString(p *Payload) string {
	fields := map[string]string{
		"id":         strconv.FormatInt(int64(p.ID), 10),
		"first_name": p.FirstName,
		"auth_date":  strconv.FormatInt(int64(p.AuthDate), 10),
	}
	if p.LastName != "" {
		fields["last_name"] = p.LastName
	}
	if p.Username != "" {
		fields["username"] = p.Username
	}
	if p.PhotoURL != "" {
		fields["photo_url"] = p.PhotoURL
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	return strings.Join(lines, "\n")
}

func signature(p *Payload, botToken string) []byte {
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(DataCheckString(p)))
	return mac.Sum(nil)
}

// Sign returns the hex signature Telegram would attach to p
func Sign(p *Payload, botToken string) string {
	return hex.EncodeToString(signature(p, botToken))
}

// Verify reports whether p.Hash is the valid signature of p under botToken
func Verify(p *Payload, botToken string) bool {
	got, err := hex.DecodeString(strings.ToLower(p.Hash))
	if err != nil {
		return false
	}
	return hmac.Equal(signature(p, botToken), got)
}

// IsExpired reports whether an assertion issued at authDate is older than MaxAge at now
func IsExpired(authDate, now time.Time) bool {
	return now.Sub(authDate) > MaxAge
}
