package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeMAC parses a colon separated MAC address with one or two hex digits
// per octet and returns it as lowercase zero padded octets.
func NormalizeMAC(mac string) (string, error) {
	parts := strings.Split(strings.TrimSpace(mac), ":")
	if len(parts) != 6 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}

	octets := make([]string, 0, 6)
	for _, p := range parts {
		if p == "" || len(p) > 2 {
			return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
		}
		octets = append(octets, fmt.Sprintf("%02x", v))
	}
	return strings.Join(octets, ":"), nil
}

// ValidCredential reports whether a uuid or access token is well formed:
// non-empty and made only of hex digits and hyphens.
func ValidCredential(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		case c == '-':
		default:
			return false
		}
	}
	return true
}

// Credentials holds the account identity issued by the gateway on activation.
type Credentials struct {
	UUID        string `json:"uuid" msgpack:"uuid"`
	AccessToken string `json:"accessToken" msgpack:"access_token"`
}

// Valid reports whether both fields are well formed.
func (c Credentials) Valid() bool {
	return ValidCredential(c.UUID) && ValidCredential(c.AccessToken)
}
