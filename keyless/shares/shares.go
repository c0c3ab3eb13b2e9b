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

// Package shares splits and combines secrets into byte-encoded Shamir shares.
//
// A share is encoded as the y-bytes of every per-byte polynomial followed by
// a single trailing byte holding the x-coordinate, the layout used by
// Hashicorp Vault.
package shares

import (
	"errors"
	"fmt"

	"github.com/GoogleCloudPlatform/keyless/keyless/internal/gf256"
	"github.com/GoogleCloudPlatform/keyless/keyless/internal/shamir"
)

var (
	// ErrInsufficientShares is returned when fewer shares than the threshold
	// are supplied to CombineShares.
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrDuplicateX is returned when two shares carry the same x-coordinate.
	ErrDuplicateX = errors.New("shares have duplicate x-coordinates")
	// ErrMalformedShare is returned for shares that are too short or carry x = 0.
	ErrMalformedShare = errors.New("malformed share")
)

// XCoordinate returns the x-coordinate stored in the trailing byte of share.
func XCoordinate(share []byte) (byte, error) {
	if len(share) < 2 {
		return 0, fmt.Errorf("%w: length %d", ErrMalformedShare, len(share))
	}
	x := share[len(share)-1]
	if x == 0 {
		return 0, fmt.Errorf("%w: x-coordinate is zero", ErrMalformedShare)
	}
	return x, nil
}

func convertToByteShares(split []shamir.Share) [][]byte {
	byteShares := make([][]byte, 0, len(split))
	for _, share := range split {
		shareWithX := make([]byte, 0, len(share.Value)+1)
		shareWithX = append(shareWithX, share.Value...)
		byteShares = append(byteShares, append(shareWithX, byte(share.X)))
	}
	return byteShares
}

func convertToShamirShares(byteShares [][]byte) ([]shamir.Share, error) {
	out := make([]shamir.Share, 0, len(byteShares))
	var seen [256]bool
	for _, share := range byteShares {
		x, err := XCoordinate(share)
		if err != nil {
			return nil, err
		}
		if seen[x] {
			return nil, fmt.Errorf("%w: x = %d", ErrDuplicateX, x)
		}
		seen[x] = true
		out = append(out, shamir.Share{X: gf256.Element(x), Value: share[:len(share)-1]})
	}
	return out, nil
}

// SplitShares splits secret into numShares shares at random distinct
// non-zero x-coordinates, any threshold of which reconstruct it.
func SplitShares(secret []byte, numShares, threshold int) ([][]byte, error) {
	split, err := shamir.SplitSecret(shamir.Metadata{NumShares: numShares, Threshold: threshold}, secret)
	if err != nil {
		return nil, fmt.Errorf("error splitting secret: %w", err)
	}
	return convertToByteShares(split.Shares), nil
}

// SplitSharesAt splits secret into one share per entry of xs, evaluated at
// exactly those x-coordinates.
func SplitSharesAt(secret []byte, threshold int, xs []byte) ([][]byte, error) {
	md := shamir.Metadata{NumShares: len(xs), Threshold: threshold}
	for _, x := range xs {
		md.XCoordinates = append(md.XCoordinates, gf256.Element(x))
	}
	split, err := shamir.SplitSecret(md, secret)
	if err != nil {
		return nil, fmt.Errorf("error splitting secret: %w", err)
	}
	return convertToByteShares(split.Shares), nil
}

// CombineShares reconstitutes the secret from at least threshold shares.
// Like any Shamir scheme it does not detect faulty shares; integrity is
// checked by the caller.
func CombineShares(byteShares [][]byte, threshold int) ([]byte, error) {
	if len(byteShares) < threshold || len(byteShares) < 2 {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrInsufficientShares, len(byteShares), max(threshold, 2))
	}
	split, err := convertToShamirShares(byteShares)
	if err != nil {
		return nil, err
	}
	return shamir.Reconstruct(split, threshold)
}

// RecoverMissingShare returns the share at missingX on the degree-1
// polynomial through (0, secret) and known. This is the closed form of a
// 2-of-n split:
//
//	a = (y_known - secret) / x_known
//	y_missing = secret + a * missingX
//
// The result equals the share a 2-of-n split of secret would have produced
// at missingX alongside known.
func RecoverMissingShare(secret, known []byte, missingX byte) ([]byte, error) {
	xk, err := XCoordinate(known)
	if err != nil {
		return nil, err
	}
	if missingX == 0 {
		return nil, fmt.Errorf("%w: missing x-coordinate is zero", ErrMalformedShare)
	}
	if len(known)-1 != len(secret) {
		return nil, fmt.Errorf("%w: share holds %d bytes, secret has %d", ErrMalformedShare, len(known)-1, len(secret))
	}
	if xk == missingX {
		out := make([]byte, len(known))
		copy(out, known)
		return out, nil
	}
	out := make([]byte, len(secret)+1)
	for i, s := range secret {
		se := gf256.Element(s)
		a, err := gf256.Element(known[i]).Sub(se).Div(gf256.Element(xk))
		if err != nil {
			return nil, err
		}
		out[i] = byte(se.Add(a.Mul(gf256.Element(missingX))))
	}
	out[len(secret)] = missingX
	return out, nil
}
