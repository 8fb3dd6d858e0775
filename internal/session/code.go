package session

import (
	"math/rand/v2"
	"strings"
)

// CodeAlphabet omits characters that are easy to confuse when read aloud
// or typed (I, O, 0, 1).
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const codeLength = 4

// GenerateCode returns a human-friendly code such as "AMA-7KQ2".
func GenerateCode(prefix string, rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1 + codeLength)
	if prefix != "" {
		b.WriteString(prefix)
		b.WriteByte('-')
	}
	for i := 0; i < codeLength; i++ {
		b.WriteByte(CodeAlphabet[rng.IntN(len(CodeAlphabet))])
	}
	return b.String()
}
