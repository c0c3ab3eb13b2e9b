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

package keyless

import (
	"fmt"
	"io"

	"github.com/google/tink/go/streamingaead/subtle"
)

const (
	// Parameters for streaming AEAD, required by Tink's subtle API.
	aeadHKDFAlg            = "SHA256"
	aeadKeyBytes           = 32
	aeadSegmentSize        = 4096
	aeadFirstSegmentOffset = 0
)

// payloadCipher is the streaming AEAD that protects pack payloads.
type payloadCipher struct {
	aead *subtle.AESGCMHKDF
}

func newPayloadCipher(key []byte) (*payloadCipher, error) {
	aead, err := subtle.NewAESGCMHKDF(key, aeadHKDFAlg, aeadKeyBytes, aeadSegmentSize, aeadFirstSegmentOffset)
	if err != nil {
		return nil, fmt.Errorf("unable to create new cipher: %v", err)
	}
	return &payloadCipher{aead: aead}, nil
}

// seal appends the encryption of plaintext to w.
func (c *payloadCipher) seal(w io.Writer, plaintext, aad []byte) error {
	writer, err := c.aead.NewEncryptingWriter(w, aad)
	if err != nil {
		return fmt.Errorf("unable to create an encrypt writer: %v", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		writer.Close()
		return fmt.Errorf("unable to write to the encrypt writer: %v", err)
	}
	return writer.Close()
}

// open decrypts everything remaining in r.
func (c *payloadCipher) open(r io.Reader, aad []byte) ([]byte, error) {
	reader, err := c.aead.NewDecryptingReader(r, aad)
	if err != nil {
		return nil, fmt.Errorf("unable to create decrypt reader: %v", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading plaintext: %v", err)
	}
	return plaintext, nil
}
