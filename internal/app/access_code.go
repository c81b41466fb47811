package app

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	accessCodeLength   = 6
	accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// AccessCodeGenerator produces short human-typeable join codes. Generation is
// pure and makes no uniqueness guarantee; the service checks candidates
// against non-ended sessions before committing.
type AccessCodeGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewAccessCodeGenerator() *AccessCodeGenerator {
	return &AccessCodeGenerator{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewAccessCodeGeneratorWithSource is test-only for deterministic codes.
func NewAccessCodeGeneratorWithSource(src rand.Source) *AccessCodeGenerator {
	return &AccessCodeGenerator{rnd: rand.New(src)}
}

// Generate returns a 6-character code drawn uniformly from [A-Z0-9].
func (g *AccessCodeGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	b := make([]byte, accessCodeLength)
	for i := range b {
		b[i] = accessCodeAlphabet[g.rnd.Intn(len(accessCodeAlphabet))]
	}
	return string(b)
}

// NormalizeAccessCode maps user input onto the stored code form: trimmed and
// uppercased. Codes are case-insensitive on input.
func NormalizeAccessCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
