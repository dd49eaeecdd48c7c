package booking

import (
	"crypto/rand"
	"fmt"
	"time"
)

// idAlphabet is the base32 set used for the random suffix: unambiguous
// upper-case characters safe to read over the phone.
const idAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const idSuffixLen = 10

// GenerateID produces a booking identifier of the form
//
//	BK-YYYYMMDDHH-XXXXXXXXXX
//
// The zero-padded date and hour prefix keeps identifiers sortable by
// reservation slot for traceability; the suffix comes from crypto/rand
// because the identifier doubles as one half of the customer's proof of
// ownership, so it must not be guessable.
func GenerateID(date time.Time, hourOfDay int) (string, error) {
	buf := make([]byte, idSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("booking: generate id: %w", err)
	}
	suffix := make([]byte, idSuffixLen)
	for i, b := range buf {
		suffix[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return fmt.Sprintf("BK-%s%02d-%s", date.Format("20060102"), hourOfDay, suffix), nil
}

// GenerateBlockID produces a blocked-interval identifier of the form
// BL-YYYYMMDD-XXXXXXXXXX, same alphabet and guarantees as GenerateID.
func GenerateBlockID(date time.Time) (string, error) {
	buf := make([]byte, idSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("booking: generate block id: %w", err)
	}
	suffix := make([]byte, idSuffixLen)
	for i, b := range buf {
		suffix[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return fmt.Sprintf("BL-%s-%s", date.Format("20060102"), suffix), nil
}
