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

// Package shamir performs t-of-n [Shamir Secret Sharing] (SSS) on
// arbitrary-size secrets over GF(2^8). Each byte of the secret is the constant
// term of its own random polynomial of degree t-1; a share holds the
// evaluation of every polynomial at the share's X coordinate.
//
// This scheme is secure under the following assumptions:
//   - A trusted dealer generates the shares.
//   - A passive adversary observing fewer than t shares learns nothing about
//     the secret. The scheme does not detect bogus or corrupted shares
//     supplied during reconstruction.
//
// [Shamir Secret Sharing]: https://web.mit.edu/6.857/OldStuff/Fall03/ref/Shamir-HowToShareAsecrets.pdf
package shamir

import (
	"fmt"

	"github.com/GoogleCloudPlatform/keyless/keyless/internal/gf256"
)

// Metadata contains the scheme parameters needed to split a secret.
type Metadata struct {
	NumShares int
	Threshold int
	// XCoordinates optionally fixes the evaluation point of each share. When
	// empty, NumShares distinct random non-zero points are chosen.
	XCoordinates []gf256.Element
}

// Share is one evaluation point of the secret polynomials.
type Share struct {
	X     gf256.Element
	Value []byte
}

// Split represents a secret split into shares.
type Split struct {
	Metadata Metadata
	Shares   []Share
}

// SplitSecret splits secret into metadata.NumShares shares where
// metadata.Threshold or more shares can be combined to reconstruct it.
func SplitSecret(metadata Metadata, secret []byte) (Split, error) {
	if err := validateSplitInput(metadata, secret); err != nil {
		return Split{}, err
	}
	xs := metadata.XCoordinates
	if len(xs) == 0 {
		var err error
		if xs, err = gf256.DistinctNonZero(metadata.NumShares); err != nil {
			return Split{}, err
		}
	}
	shares := make([]Share, metadata.NumShares)
	for i := range shares {
		shares[i] = Share{X: xs[i], Value: make([]byte, len(secret))}
	}

	// For every byte we build the polynomial
	// secret[b] + R_1 * x + R_2 * x^2 + ... + R_(t-1) * x^(t-1)
	// with coefficients drawn uniformly from the whole field and evaluate it at
	// each share's X. A zero coefficient must stay possible: otherwise a share
	// below the threshold excludes values of the secret.
	coefficients := make([]gf256.Element, metadata.Threshold)
	for b, s := range secret {
		coefficients[0] = gf256.Element(s)
		for i := 1; i < metadata.Threshold; i++ {
			var err error
			if coefficients[i], err = gf256.Random(); err != nil {
				return Split{}, err
			}
		}
		for i := range shares {
			shares[i].Value[b] = byte(gf256.Eval(coefficients, shares[i].X))
		}
	}
	return Split{
		Metadata: Metadata{NumShares: metadata.NumShares, Threshold: metadata.Threshold, XCoordinates: xs},
		Shares:   shares,
	}, nil
}

// Reconstruct recovers the secret from at least threshold shares.
// Only the first threshold shares take part in the interpolation.
func Reconstruct(shares []Share, threshold int) ([]byte, error) {
	return Evaluate(shares, threshold, 0)
}

// Evaluate interpolates the secret polynomials through the first threshold
// shares and returns their values at x. Evaluating at 0 yields the secret,
// evaluating at any other point yields the share that would sit there.
func Evaluate(shares []Share, threshold int, x gf256.Element) ([]byte, error) {
	if err := validateReconstructInput(shares, threshold); err != nil {
		return nil, err
	}
	used := shares[:threshold]
	xs := make([]gf256.Element, len(used))
	for i, s := range used {
		xs[i] = s.X
	}
	// The basis only depends on the X coordinates, so it is shared by all bytes.
	basis, err := gf256.LagrangeBasis(xs, x)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(used[0].Value))
	for b := range out {
		var sum gf256.Element
		for i, s := range used {
			sum = sum.Add(gf256.Element(s.Value[b]).Mul(basis[i]))
		}
		out[b] = byte(sum)
	}
	return out, nil
}

func validateSplitInput(metadata Metadata, secret []byte) error {
	if len(secret) == 0 {
		return fmt.Errorf("secret must not be empty")
	}
	if metadata.NumShares < 2 || metadata.NumShares > 255 {
		return fmt.Errorf("numShares must be between 2 and 255, got %d", metadata.NumShares)
	}
	if metadata.Threshold < 2 {
		return fmt.Errorf("threshold must be larger than 1")
	}
	if metadata.Threshold > metadata.NumShares {
		return fmt.Errorf("threshold should be smaller than or equal to numShares")
	}
	if len(metadata.XCoordinates) == 0 {
		return nil
	}
	if len(metadata.XCoordinates) != metadata.NumShares {
		return fmt.Errorf("got %d x coordinates for %d shares", len(metadata.XCoordinates), metadata.NumShares)
	}
	return checkCoordinates(metadata.XCoordinates)
}

func validateReconstructInput(shares []Share, threshold int) error {
	if threshold < 2 {
		return fmt.Errorf("threshold should be at least 2")
	}
	if len(shares) < threshold {
		return fmt.Errorf("not enough shares to reconstruct the secret, need at least %d, got: %d", threshold, len(shares))
	}
	xs := make([]gf256.Element, len(shares))
	for i, s := range shares {
		if len(s.Value) == 0 {
			return fmt.Errorf("empty share value")
		}
		if len(s.Value) != len(shares[0].Value) {
			return fmt.Errorf("share values differ in length: %d and %d", len(s.Value), len(shares[0].Value))
		}
		xs[i] = s.X
	}
	return checkCoordinates(xs)
}

func checkCoordinates(xs []gf256.Element) error {
	var seen [256]bool
	for _, x := range xs {
		if x == 0 {
			return fmt.Errorf("invalid X value 0")
		}
		if seen[x] {
			return fmt.Errorf("all shares should be unique points, %d repeats", x)
		}
		seen[x] = true
	}
	return nil
}
