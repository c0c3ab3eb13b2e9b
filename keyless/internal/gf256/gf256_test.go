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

package gf256_test

import (
	"crypto/rand"
	"errors"
	"fmt"
	"testing"

	"github.com/GoogleCloudPlatform/keyless/keyless/internal/gf256"
)

func getRandomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("Failed to read random bytes: %v", err)
	}
	return b
}

func TestAddIsXor(t *testing.T) {
	for n := 0; n < 10; n++ {
		b := getRandomBytes(t, 2)
		a, c := gf256.Element(b[0]), gf256.Element(b[1])
		if got, want := byte(a.Add(c)), b[0]^b[1]; got != want {
			t.Fatalf("%d + %d = %d, want %d", b[0], b[1], got, want)
		}
		if got, want := a.Sub(c), a.Add(c); got != want {
			t.Fatalf("%d - %d = %d, want %d", b[0], b[1], got, want)
		}
	}
}

func TestMul(t *testing.T) {
	for _, tc := range []struct {
		a, b, want gf256.Element
	}{
		// AES field examples.
		{a: 0x53, b: 0xCA, want: 0x01},
		{a: 0x02, b: 0x87, want: 0x15},
		{a: 0x03, b: 0x6E, want: 0xB2},
		{a: 161, b: 56, want: 102},
		{a: 51, b: 82, want: 15},
		{a: 15, b: 30, want: 170},
		{a: 105, b: 27, want: 20},
		{a: 178, b: 160, want: 67},
		{a: 244, b: 118, want: 55},
		{a: 250, b: 221, want: 160},
		{a: 244, b: 34, want: 90},
		{a: 0, b: 34, want: 0},
		{a: 1, b: 34, want: 34},
	} {
		t.Run(fmt.Sprintf("%d * %d", tc.a, tc.b), func(t *testing.T) {
			if got := tc.a.Mul(tc.b); got != tc.want {
				t.Errorf("%d * %d = %d, want %d", tc.a, tc.b, got, tc.want)
			}
			if got := tc.b.Mul(tc.a); got != tc.want {
				t.Errorf("%d * %d = %d, want %d", tc.b, tc.a, got, tc.want)
			}
		})
	}
}

func TestInverse(t *testing.T) {
	for _, tc := range []struct {
		a, want gf256.Element
	}{
		{a: 0x53, want: 0xCA},
		{a: 29, want: 64},
		{a: 180, want: 17},
		{a: 249, want: 156},
		{a: 186, want: 118},
		{a: 209, want: 7},
		{a: 233, want: 78},
		{a: 242, want: 56},
		{a: 1, want: 1},
	} {
		t.Run(fmt.Sprintf("inverse(%d)", tc.a), func(t *testing.T) {
			got, err := tc.a.Inverse()
			if err != nil {
				t.Fatalf("Inverse() err = %v, want nil", err)
			}
			if got != tc.want {
				t.Errorf("inverse(%d) = %d, want %d", tc.a, got, tc.want)
			}
		})
	}
}

func TestEveryNonZeroElementHasInverse(t *testing.T) {
	for i := 1; i < 256; i++ {
		e := gf256.Element(i)
		inv, err := e.Inverse()
		if err != nil {
			t.Fatalf("Inverse(%d) err = %v, want nil", i, err)
		}
		if got := e.Mul(inv); got != 1 {
			t.Fatalf("%d * inverse(%d) = %d, want 1", i, i, got)
		}
	}
}

func TestZeroInverseFails(t *testing.T) {
	if _, err := gf256.Element(0).Inverse(); !errors.Is(err, gf256.ErrZeroInverse) {
		t.Fatalf("Inverse(0) err = %v, want %v", err, gf256.ErrZeroInverse)
	}
	if _, err := gf256.Element(7).Div(0); !errors.Is(err, gf256.ErrZeroInverse) {
		t.Fatalf("Div(7, 0) err = %v, want %v", err, gf256.ErrZeroInverse)
	}
}

func TestRandomIncludesZero(t *testing.T) {
	zeros := 0
	for n := 0; n < 4096; n++ {
		e, err := gf256.Random()
		if err != nil {
			t.Fatalf("Random() err = %v, want nil", err)
		}
		if e == 0 {
			zeros++
		}
	}
	if zeros == 0 {
		t.Errorf("Random() never returned zero in 4096 draws")
	}
}

func TestDistinctNonZero(t *testing.T) {
	for _, n := range []int{0, 1, 3, 255} {
		xs, err := gf256.DistinctNonZero(n)
		if err != nil {
			t.Fatalf("DistinctNonZero(%d) err = %v, want nil", n, err)
		}
		if len(xs) != n {
			t.Fatalf("DistinctNonZero(%d) returned %d elements", n, len(xs))
		}
		seen := map[gf256.Element]bool{}
		for _, x := range xs {
			if x == 0 {
				t.Errorf("DistinctNonZero(%d) returned zero", n)
			}
			if seen[x] {
				t.Errorf("DistinctNonZero(%d) returned %d twice", n, x)
			}
			seen[x] = true
		}
	}
	if _, err := gf256.DistinctNonZero(256); err == nil {
		t.Fatalf("DistinctNonZero(256) err = nil, want error")
	}
}

func TestEvalAndLagrangeBasis(t *testing.T) {
	coefficients := []gf256.Element{0x2a, 0x11, 0xc3}
	xs := []gf256.Element{3, 0x97, 0xff}
	ys := make([]gf256.Element, len(xs))
	for i, x := range xs {
		ys[i] = gf256.Eval(coefficients, x)
	}
	for _, at := range []gf256.Element{0, 1, 3, 0x42, 0xfe} {
		basis, err := gf256.LagrangeBasis(xs, at)
		if err != nil {
			t.Fatalf("LagrangeBasis() err = %v, want nil", err)
		}
		var got gf256.Element
		for i, y := range ys {
			got = got.Add(y.Mul(basis[i]))
		}
		if want := gf256.Eval(coefficients, at); got != want {
			t.Errorf("interpolated f(%d) = %d, want %d", at, got, want)
		}
	}
	if got := gf256.Eval(coefficients, 0); got != coefficients[0] {
		t.Errorf("Eval(f, 0) = %d, want %d", got, coefficients[0])
	}
}

func TestLagrangeBasisDuplicateNodesFails(t *testing.T) {
	if _, err := gf256.LagrangeBasis([]gf256.Element{5, 9, 5}, 0); err == nil {
		t.Fatalf("LagrangeBasis() err = nil, want error")
	}
}
