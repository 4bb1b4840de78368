// File: internal/usecase/reference.go
package usecase

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
)

const (
	ReferencePrefix = "TXN"
	referenceBody   = 5

	// letters without I and O, digits without 0 and 1
	referenceLetters = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	referenceDigits  = "23456789"
)

var (
	currentReferenceRe = regexp.MustCompile(`^TXN[A-HJ-NP-Z2-9]{5}$`)
	legacyReferenceRe  = regexp.MustCompile(`^TXN-\d+-[A-Za-z0-9]{8}$`)
)

// ReferenceGenerator produces the code a payer copies into the transfer narration.
type ReferenceGenerator struct {
	rnd io.Reader
}

// NewReferenceGenerator uses crypto/rand when rnd is nil.
func NewReferenceGenerator(rnd io.Reader) *ReferenceGenerator {
	if rnd == nil {
		rnd = rand.Reader
	}
	return &ReferenceGenerator{rnd: rnd}
}

// Generate returns TXN followed by five characters holding at least one
// letter and one digit in random positions.
func (g *ReferenceGenerator) Generate() (string, error) {
	alphabet := referenceLetters + referenceDigits
	body := make([]byte, referenceBody)

	l, err := g.pick(referenceLetters)
	if err != nil {
		return "", err
	}
	d, err := g.pick(referenceDigits)
	if err != nil {
		return "", err
	}
	body[0], body[1] = l, d
	for i := 2; i < referenceBody; i++ {
		if body[i], err = g.pick(alphabet); err != nil {
			return "", err
		}
	}

	// Fisher-Yates
	for i := len(body) - 1; i > 0; i-- {
		j, err := g.intn(i + 1)
		if err != nil {
			return "", err
		}
		body[i], body[j] = body[j], body[i]
	}
	return ReferencePrefix + string(body), nil
}

func (g *ReferenceGenerator) pick(set string) (byte, error) {
	i, err := g.intn(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func (g *ReferenceGenerator) intn(n int) (int, error) {
	v, err := rand.Int(g.rnd, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("reference randomness: %w", err)
	}
	return int(v.Int64()), nil
}

// IsReference reports whether s is a well-formed reference in the current
// or the legacy TXN-<epoch-ms>-<8 chars> format.
func IsReference(s string) bool {
	return currentReferenceRe.MatchString(s) || legacyReferenceRe.MatchString(s)
}
