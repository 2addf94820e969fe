package app

import (
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCodeLength is the length of generated game codes.
	DefaultCodeLength = 5
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts   = 64
)

var (
	ErrCodeSpaceExhausted = errors.New("could not allocate a unique game code")
	ErrCodeNotReserved    = errors.New("game code is not reserved")
)

// Registry maps short game codes to live match IDs. Codes are unique among
// the entries held, whether reserved or bound. Safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	rng     *rand.Rand
	length  int
	entries map[string]string // code -> match ID ("" while reserved)
}

// NewRegistry constructs a Registry with the provided rng or a time-seeded default.
func NewRegistry(rng *rand.Rand, codeLength int) *Registry {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	return &Registry{
		rng:     rng,
		length:  codeLength,
		entries: make(map[string]string),
	}
}

// NormalizeCode canonicalizes a user-supplied game code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Reserve allocates a fresh code, regenerating on collision.
func (r *Registry) Reserve() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < maxCodeAttempts; i++ {
		code := r.generate()
		if _, taken := r.entries[code]; taken {
			continue
		}
		r.entries[code] = ""
		return code, nil
	}
	return "", ErrCodeSpaceExhausted
}

// Bind attaches a match ID to a reserved code.
func (r *Registry) Bind(code, matchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	code = NormalizeCode(code)
	if _, ok := r.entries[code]; !ok {
		return ErrCodeNotReserved
	}
	r.entries[code] = matchID
	return nil
}

// Lookup resolves a code to its match ID. Reserved but unbound codes are not found.
func (r *Registry) Lookup(code string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	matchID, ok := r.entries[NormalizeCode(code)]
	if !ok || matchID == "" {
		return "", false
	}
	return matchID, true
}

// Release frees a code for reuse.
func (r *Registry) Release(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, NormalizeCode(code))
}

// Len returns the number of codes held.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) generate() string {
	b := make([]byte, r.length)
	for i := range b {
		b[i] = codeAlphabet[r.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}
