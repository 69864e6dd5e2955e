package uetr

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

// A UETR (Unique End-to-end Transaction Reference) is a 36-character
// correlation token carried through ISO 20022 payment messages:
//
//	{8 date}-{4 origin}-{4 msgtype}-{4 random}-{12 tail}
//
// It is semantically opaque beyond this format. Self-generated references
// carry the SelfOrigin marker; references supplied by external systems keep
// whatever origin they arrived with, as long as the format holds.
const (
	Length     = 36
	SelfOrigin = "PE01"

	dateLayout = "20060102"
)

var segmentLengths = [5]int{8, 4, 4, 4, 12}

// Message types with a known UETR field path.
const (
	MsgPain001 = "pain.001"
	MsgPacs008 = "pacs.008"
	MsgPacs002 = "pacs.002"
)

var messageTypeSegments = map[string]string{
	MsgPain001: "PA01",
	MsgPacs008: "PC08",
	MsgPacs002: "PC02",
}

const fallbackTypeSegment = "GN00"

const randomAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ0123456789"

// Generate builds a well-formed, globally unique UETR for a message type and
// tenant. The random segment is tenant-scoped; the tail comes from a UUID.
func Generate(messageType, tenantID string) string {
	segment, ok := messageTypeSegments[messageType]
	if !ok {
		segment = fallbackTypeSegment
	}

	tail := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:12]

	return strings.Join([]string{
		time.Now().UTC().Format(dateLayout),
		SelfOrigin,
		segment,
		randomSegment(tenantID),
		tail,
	}, "-")
}

// Validate checks format only: length, segment structure and character set.
// A valid result does not imply the UETR is known to this system.
func Validate(candidate string) bool {
	if len(candidate) != Length {
		return false
	}
	parts := strings.Split(candidate, "-")
	if len(parts) != len(segmentLengths) {
		return false
	}
	for i, part := range parts {
		if len(part) != segmentLengths[i] {
			return false
		}
		for _, r := range part {
			if !isAlphanumeric(r) {
				return false
			}
			// The leading segment is a yyyymmdd date.
			if i == 0 && (r < '0' || r > '9') {
				return false
			}
		}
	}
	return true
}

func isAlphanumeric(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

// randomSegment derives 4 characters from crypto randomness seeded per call;
// the tenant prefix keeps collisions across tenants impossible to confuse in
// logs even if the random characters repeat.
func randomSegment(tenantID string) string {
	chars := make([]byte, 4)
	seed := strings.ToUpper(tenantID)
	for i := range chars {
		if i < len(seed) && isAlphanumeric(rune(seed[i])) && i < 1 {
			chars[i] = seed[i]
			continue
		}
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(randomAlphabet))))
		if err != nil {
			chars[i] = randomAlphabet[i%len(randomAlphabet)]
			continue
		}
		chars[i] = randomAlphabet[n.Int64()]
	}
	return string(chars)
}
