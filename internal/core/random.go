package core

import (
	mrand "math/rand"
	"strings"

	"github.com/jmcvetta/randutil"
	"github.com/rs/zerolog/log"
)

const (
	CodeLength  = 4
	CodeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// Rand is the source of randomness for shuffles and tie-breaks.
type Rand interface {
	// Intn returns a uniform value in [0, n).
	Intn(n int) int
}

type cryptoRand struct{}

// CryptoRand draws from crypto/rand and falls back to math/rand when the
// system source fails.
func CryptoRand() Rand {
	return cryptoRand{}
}

func (cryptoRand) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := randutil.IntRange(0, n)
	if err != nil {
		log.Warn().Err(err).Msg("crypto rand failed, using math/rand")
		return mrand.Intn(n)
	}
	return v
}

// NewRoomCode returns CodeLength random upper-case letters.
func NewRoomCode() string {
	code, err := randutil.String(CodeLength, CodeLetters)
	if err == nil {
		return code
	}
	log.Warn().Err(err).Msg("crypto rand failed, using math/rand")
	var b strings.Builder
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(CodeLetters[mrand.Intn(len(CodeLetters))])
	}
	return b.String()
}

func shuffle[T any](items []T, r Rand) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		items[i], items[j] = items[j], items[i]
	}
}
