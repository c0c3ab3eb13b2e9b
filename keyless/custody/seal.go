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

package custody

import (
	"fmt"

	"github.com/google/tink/go/subtle/random"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const saltSize = 16

// KDFParams are the argon2id cost parameters used to derive sealing keys.
type KDFParams struct {
	Time     uint32
	MemoryKB uint32
	Threads  uint8
}

// DefaultKDFParams are the argon2id parameters used outside of tests.
var DefaultKDFParams = KDFParams{Time: 2, MemoryKB: 64 * 1024, Threads: 1}

// Sealer encrypts small blobs under a key derived from the session passcode
// and a secret bound to this device or process.
//
// A sealed blob is salt (16 bytes) || nonce (24 bytes) || XChaCha20-Poly1305 ciphertext.
type Sealer struct {
	secret []byte
	params KDFParams
}

// NewSealer returns a Sealer bound to secret.
func NewSealer(secret []byte, params KDFParams) *Sealer {
	return &Sealer{secret: append([]byte(nil), secret...), params: params}
}

func (s *Sealer) deriveKey(passcode string, salt []byte) []byte {
	material := make([]byte, 0, len(salt)+len(s.secret))
	material = append(append(material, salt...), s.secret...)
	return argon2.IDKey([]byte(passcode), material, s.params.Time, s.params.MemoryKB, s.params.Threads, chacha20poly1305.KeySize)
}

// Seal encrypts plaintext, binding it to aad.
func (s *Sealer) Seal(passcode string, plaintext, aad []byte) ([]byte, error) {
	salt := random.GetRandomBytes(saltSize)
	key := s.deriveKey(passcode, salt)
	defer clear(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := random.GetRandomBytes(chacha20poly1305.NonceSizeX)
	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(append(out, salt...), nonce...)
	return aead.Seal(out, nonce, plaintext, aad), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(passcode string, sealed, aad []byte) ([]byte, error) {
	if len(sealed) < saltSize+chacha20poly1305.NonceSizeX+chacha20poly1305.Overhead {
		return nil, fmt.Errorf("%w: sealed blob is %d bytes", ErrAuthFailed, len(sealed))
	}
	salt := sealed[:saltSize]
	nonce := sealed[saltSize : saltSize+chacha20poly1305.NonceSizeX]
	key := s.deriveKey(passcode, salt)
	defer clear(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, sealed[saltSize+chacha20poly1305.NonceSizeX:], aad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}
