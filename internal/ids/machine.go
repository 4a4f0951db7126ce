// Package ids implements Forge's typed identifiers: content-addressed
// machine IDs and monotonic extension-service config version tokens.
package ids

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// machineIDPrefix is the base-32 content-addressed prefix applied to every
// managed-host ID, distinguishing it at a glance from the UUIDs used for
// every other Forge object.
const machineIDPrefix = "fm100"

const base32Alphabet = "0123456789abcdefghjkmnpqrstvwxyz" // Crockford, no i/l/o/u

// NewMachineID generates a new random machine ID of the form
// "fm100<26 base-32 chars>", content-addressed in the sense that it is
// derived from random bytes at creation time and never reused.
func NewMachineID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating machine id entropy: %w", err)
	}
	return machineIDPrefix + encodeBase32(buf), nil
}

// ValidMachineID reports whether s has the expected machine ID shape.
func ValidMachineID(s string) bool {
	if !strings.HasPrefix(s, machineIDPrefix) {
		return false
	}
	rest := s[len(machineIDPrefix):]
	if len(rest) == 0 {
		return false
	}
	for _, c := range rest {
		if !strings.ContainsRune(base32Alphabet, c) {
			return false
		}
	}
	return true
}

func encodeBase32(b []byte) string {
	var sb strings.Builder
	var bits uint
	var value uint32
	for _, by := range b {
		value = (value << 8) | uint32(by)
		bits += 8
		for bits >= 5 {
			bits -= 5
			sb.WriteByte(base32Alphabet[(value>>bits)&0x1F])
		}
	}
	if bits > 0 {
		sb.WriteByte(base32Alphabet[(value<<(5-bits))&0x1F])
	}
	return sb.String()
}

// NewUUID generates a new random UUID for the object identifiers used by
// every Forge type other than managed hosts (instances, VPCs, NSGs,
// extension services, tenant keysets).
func NewUUID() uuid.UUID {
	return uuid.New()
}
