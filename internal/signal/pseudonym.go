// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package signal

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Pseudonymizer derives stable pseudonymous subject IDs from raw subject
// tokens using a keyed BLAKE2b hash. The mapping is one-way: raw tokens are
// never stored, and without the key the pseudonym cannot be linked back.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer creates a pseudonymizer with the given secret key. An
// empty key generates a random one, which keeps pseudonyms stable only for
// the process lifetime; set a key in production.
func NewPseudonymizer(key string) (*Pseudonymizer, error) {
	k := []byte(key)
	if len(k) == 0 {
		k = make([]byte, 32)
		if _, err := rand.Read(k); err != nil {
			return nil, fmt.Errorf("generate pseudonym key: %w", err)
		}
	}
	if len(k) > 64 {
		// blake2b keys are capped at 64 bytes; fold longer keys down.
		sum := blake2b.Sum256(k)
		k = sum[:]
	}
	// Validate the key once so Pseudonymize cannot fail.
	if _, err := blake2b.New256(k); err != nil {
		return nil, fmt.Errorf("invalid pseudonym key: %w", err)
	}
	return &Pseudonymizer{key: k}, nil
}

// Pseudonymize returns the stable pseudonym for a raw subject token.
func (p *Pseudonymizer) Pseudonymize(subjectToken string) string {
	h, _ := blake2b.New256(p.key)
	h.Write([]byte(subjectToken))
	return hex.EncodeToString(h.Sum(nil)[:16])
}
