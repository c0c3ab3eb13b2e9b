// Copyright 2026 Google LLC
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

// Package mnemonic converts between BIP-39 mnemonics and their raw entropy.
package mnemonic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// EntropyBits is the entropy size of a 24-word mnemonic.
const EntropyBits = 256

// ErrInvalidMnemonic is returned for phrases that fail the BIP-39 word list or checksum check.
var ErrInvalidMnemonic = errors.New("invalid mnemonic")

// Generate returns a new mnemonic encoding bits of entropy.
func Generate(bits int) (string, error) {
	entropy, err := bip39.NewEntropy(bits)
	if err != nil {
		return "", fmt.Errorf("generating entropy: %v", err)
	}
	return FromEntropy(entropy)
}

// FromEntropy encodes entropy as a mnemonic.
func FromEntropy(entropy []byte) (string, error) {
	m, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("encoding mnemonic: %v", err)
	}
	return m, nil
}

// ToEntropy decodes a mnemonic into its entropy.
func ToEntropy(mnemonic string) ([]byte, error) {
	m := Normalize(mnemonic)
	if !bip39.IsMnemonicValid(m) {
		return nil, ErrInvalidMnemonic
	}
	entropy, err := bip39.EntropyFromMnemonic(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	return entropy, nil
}

// Valid reports whether mnemonic is a well-formed BIP-39 phrase.
func Valid(mnemonic string) bool {
	return bip39.IsMnemonicValid(Normalize(mnemonic))
}

// Normalize lower-cases the phrase and collapses whitespace to single spaces.
func Normalize(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}
