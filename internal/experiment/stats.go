// Curator - AI Tool Directory Recommendation and Learning Pipeline
// Copyright 2026 AI Tools Directory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/aitoolsdir/curator

package experiment

import "math"

// sample accumulates one variant's success-metric observations in streaming
// form, enough to recover mean and variance without retaining raw values.
type sample struct {
	n     int
	sum   float64
	sumSq float64
}

func (s *sample) add(v float64) {
	s.n++
	s.sum += v
	s.sumSq += v * v
}

func (s *sample) mean() float64 {
	if s.n == 0 {
		return 0
	}
	return s.sum / float64(s.n)
}

// variance is the unbiased sample variance.
func (s *sample) variance() float64 {
	if s.n < 2 {
		return 0
	}
	n := float64(s.n)
	return (s.sumSq - s.sum*s.sum/n) / (n - 1)
}

// welch runs Welch's two-sample t-test and returns the t statistic, the
// Welch-Satterthwaite degrees of freedom, and the two-sided p-value.
func welch(a, b *sample) (t, df, p float64) {
	if a.n < 2 || b.n < 2 {
		return 0, 0, 1
	}
	va := a.variance() / float64(a.n)
	vb := b.variance() / float64(b.n)
	se2 := va + vb
	if se2 == 0 {
		if a.mean() == b.mean() {
			return 0, 0, 1
		}
		return math.Inf(1), 1, 0
	}

	t = (a.mean() - b.mean()) / math.Sqrt(se2)
	df = se2 * se2 / (va*va/float64(a.n-1) + vb*vb/float64(b.n-1))

	// Two-sided p-value from the Student-t survival function.
	x := df / (df + t*t)
	p = regIncBeta(df/2, 0.5, x)
	if p > 1 {
		p = 1
	}
	return t, df, p
}

// regIncBeta is the regularized incomplete beta function I_x(a, b),
// evaluated by continued fraction.
func regIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lbeta, _ := math.Lgamma(a + b)
	lga, _ := math.Lgamma(a)
	lgb, _ := math.Lgamma(b)
	front := math.Exp(lbeta - lga - lgb + a*math.Log(x) + b*math.Log(1-x))

	if x < (a+1)/(a+b+2) {
		return front * betacf(a, b, x) / a
	}
	return 1 - front*betacf(b, a, 1-x)/b
}

// betacf evaluates the continued fraction for the incomplete beta function
// by the modified Lentz method.
func betacf(a, b, x float64) float64 {
	const (
		maxIter = 200
		eps     = 3e-14
		fpmin   = 1e-300
	)

	qab := a + b
	qap := a + 1
	qam := a - 1
	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < fpmin {
		d = fpmin
	}
	d = 1 / d
	h := d

	for m := 1; m <= maxIter; m++ {
		m2 := 2 * m
		aa := float64(m) * (b - float64(m)) * x / ((qam + float64(m2)) * (a + float64(m2)))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		h *= d * c

		aa = -(a + float64(m)) * (qab + float64(m)) * x / ((a + float64(m2)) * (qap + float64(m2)))
		d = 1 + aa*d
		if math.Abs(d) < fpmin {
			d = fpmin
		}
		c = 1 + aa/c
		if math.Abs(c) < fpmin {
			c = fpmin
		}
		d = 1 / d
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}
