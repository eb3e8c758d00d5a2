// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package privacy

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
)

// laplace draws one sample from the Laplace distribution with the given
// scale, via inverse-CDF sampling over a cryptographically random uniform.
// Noise quality matters here: a predictable generator would let an observer
// subtract the noise back out.
func laplace(scale float64) (float64, error) {
	u, err := uniform()
	if err != nil {
		return 0, err
	}
	// u is uniform in (-0.5, 0.5).
	u -= 0.5
	sign := 1.0
	if u < 0 {
		sign = -1.0
		u = -u
	}
	return -scale * sign * math.Log(1-2*u), nil
}

// uniform returns a uniform float64 in (0, 1).
func uniform() (float64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("read random bytes: %w", err)
	}
	// 53 random mantissa bits, then shift into (0,1) excluding endpoints.
	v := binary.BigEndian.Uint64(buf[:]) >> 11
	return (float64(v) + 0.5) / (1 << 53), nil
}
