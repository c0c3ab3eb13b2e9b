// Copyright 2022 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gf256 implements arithmetic in GF(2^8) over the AES polynomial
// x^8 + x^4 + x^3 + x + 1.
package gf256

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// Element is a member of GF(2^8).
type Element byte

// ErrZeroInverse is returned when the multiplicative inverse of zero is requested.
var ErrZeroInverse = errors.New("inverse of zero is not defined")

// (x^8 + x^4 + x^3 + x + 1) = {0x01 0x1B}, the high bit is implied by uint8 overflow.
const irreduciblePolynomial = 0x1B

// Add returns e + a. Addition and subtraction are both xor.
func (e Element) Add(a Element) Element {
	return e ^ a
}

// Sub returns e - a.
func (e Element) Sub(a Element) Element {
	return e ^ a
}

// Mul returns e * a.
func (e Element) Mul(a Element) Element {
	// No lookup tables and no data dependent branches, to keep timing flat.
	x := byte(e)
	y := byte(a)

	var product uint8
	// Negating a single bit yields an all zeros or all ones mask which
	// replaces the conditional reduction step.
	for i := 7; i >= 0; i-- {
		// reduce by the polynomial when the high bit of product is set
		mod := (-(product >> 7)) & irreduciblePolynomial
		// x[i] * y
		xiTimesY := -((x >> i) & 1) & y
		product = xiTimesY ^ mod ^ (product << 1)
	}
	return Element(product)
}

// Inverse returns e^-1, computed as e^254.
func (e Element) Inverse() (Element, error) {
	if e == 0 {
		return 0, ErrZeroInverse
	}
	// addition chain: https://crypto.stackexchange.com/a/40140
	b := e.Mul(e) // e^2
	c := e.Mul(b) // e^3

	b = c.Mul(c)         // e^6
	b = b.Mul(b)         // e^12
	c = b.Mul(c)         // e^15
	b = b.Mul(b)         // e^30
	b = b.Mul(b)         // e^60
	b = b.Mul(c)         // e^63
	b = b.Mul(b)         // e^126
	b = e.Mul(b)         // e^127
	return b.Mul(b), nil // e^254
}

// Div returns e / a.
func (e Element) Div(a Element) (Element, error) {
	inv, err := a.Inverse()
	if err != nil {
		return 0, err
	}
	return e.Mul(inv), nil
}

// Random returns a uniformly random element, zero included.
func Random() (Element, error) {
	b := make([]byte, 1)
	if _, err := rand.Read(b); err != nil {
		return 0, fmt.Errorf("rand.Read failed: %v", err)
	}
	return Element(b[0]), nil
}

// RandomNonZero returns a uniformly random non-zero element.
func RandomNonZero() (Element, error) {
	b := make([]byte, 1)
	for {
		if _, err := rand.Read(b); err != nil {
			return 0, fmt.Errorf("rand.Read failed: %v", err)
		}
		if b[0] != 0 {
			return Element(b[0]), nil
		}
	}
}

// DistinctNonZero returns n distinct random non-zero elements.
func DistinctNonZero(n int) ([]Element, error) {
	if n < 0 || n > 255 {
		return nil, fmt.Errorf("can't pick %d distinct non-zero elements out of 255", n)
	}
	var seen [256]bool
	out := make([]Element, 0, n)
	for len(out) < n {
		e, err := RandomNonZero()
		if err != nil {
			return nil, err
		}
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out, nil
}

// Eval evaluates the polynomial c[0] + c[1]*x + ... + c[n-1]*x^(n-1) at x
// using Horner's method.
func Eval(coefficients []Element, x Element) Element {
	var sum Element
	for i := len(coefficients) - 1; i > 0; i-- {
		sum = sum.Add(coefficients[i]).Mul(x)
	}
	if len(coefficients) == 0 {
		return sum
	}
	return sum.Add(coefficients[0])
}

// LagrangeBasis returns the Lagrange basis polynomials for the nodes xs,
// each evaluated at the point at:
//
//	L_i(at) = ∏j≠i (at - xs[j]) / (xs[i] - xs[j])
//
// The nodes must be distinct.
func LagrangeBasis(xs []Element, at Element) ([]Element, error) {
	out := make([]Element, len(xs))
	for i := range xs {
		num, den := Element(1), Element(1)
		for j := range xs {
			if i == j {
				continue
			}
			if xs[i] == xs[j] {
				return nil, fmt.Errorf("duplicate node %d", xs[i])
			}
			num = num.Mul(at.Sub(xs[j]))
			den = den.Mul(xs[i].Sub(xs[j]))
		}
		l, err := num.Div(den)
		if err != nil {
			return nil, err
		}
		out[i] = l
	}
	return out, nil
}
