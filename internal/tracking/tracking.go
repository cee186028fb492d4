// Package tracking generates and validates complaint tracking codes.
//
// A tracking code is {PREFIX}-{YYYYMMDD}-{NNNNNN}: an upper-case prefix,
// the UTC creation date and six random digits, e.g. CMP-20261017-004213.
// It is the only handle an anonymous reporter has on their complaint.
package tracking

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// Pattern matches every well-formed tracking code.
var Pattern = regexp.MustCompile(`^[A-Z]+-\d{8}-\d{6}$`)

var prefixPattern = regexp.MustCompile(`^[A-Z]+$`)

const digitSpace = 1_000_000

// Generator produces tracking codes with a fixed prefix.
type Generator struct {
	prefix string
	now    func() time.Time
	random io.Reader
}

// NewGenerator returns a Generator for prefix, which must be upper-case
// ASCII letters only.
func NewGenerator(prefix string) (*Generator, error) {
	if !prefixPattern.MatchString(prefix) {
		return nil, fmt.Errorf("tracking: invalid prefix %q", prefix)
	}
	return &Generator{prefix: prefix, now: time.Now, random: rand.Reader}, nil
}

// newGeneratorWith is used by tests to pin the clock and random source.
func newGeneratorWith(prefix string, now func() time.Time, random io.Reader) *Generator {
	return &Generator{prefix: prefix, now: now, random: random}
}

// Next returns a fresh code. Codes are not guaranteed unique; callers rely
// on the database unique index and regenerate on conflict.
func (g *Generator) Next() (string, error) {
	var buf [4]byte
	if _, err := io.ReadFull(g.random, buf[:]); err != nil {
		return "", fmt.Errorf("tracking: reading random digits: %w", err)
	}
	n := binary.BigEndian.Uint32(buf[:]) % digitSpace
	date := g.now().UTC().Format("20060102")
	return fmt.Sprintf("%s-%s-%06d", g.prefix, date, n), nil
}

// Prefix returns the configured prefix.
func (g *Generator) Prefix() string { return g.prefix }

// Valid reports whether code is a well-formed tracking code.
func Valid(code string) bool {
	return Pattern.MatchString(code)
}

// Normalize trims whitespace and upper-cases a user-supplied code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
