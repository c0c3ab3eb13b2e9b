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

// Sealed payload format.
//
// A sealed payload is a 20 byte header followed by the streaming AEAD
// ciphertext, with no padding.
//
// Header (20 bytes):
// - "KEYLESSPACK" magic string (11 bytes)
// - format version (1 byte)
// - key check value (8 bytes): HMAC-SHA256(key, keyCheckLabel)[:8]
//
// The key check value lets a reader tell a wrong password apart from a
// damaged ciphertext without trying to decrypt.

package keyless

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
)

// PackMagic is the magic string at the start of every sealed payload ("KEYLESSPACK").
var PackMagic = [11]byte{'K', 'E', 'Y', 'L', 'E', 'S', 'S', 'P', 'A', 'C', 'K'}

const (
	packFormatVersion = 1
	keyCheckLabel     = "keyless pack key check v1"
	headerBytes       = 20
)

// PackHeader is the header of a sealed payload.
type PackHeader struct {
	Magic    [11]byte // len(PackMagic) == 11
	Version  uint8    // 1 byte
	KeyCheck [8]byte  // 8 bytes
}

func keyCheckValue(key []byte) [8]byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(keyCheckLabel))
	var out [8]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// Reads a sealed payload header from `input` and checks it against key.
func readHeader(input io.Reader, key []byte) (*PackHeader, error) {
	var header PackHeader
	if err := binary.Read(input, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("%w: failed to read header: %v", ErrCorruptedCiphertext, err)
	}
	if !bytes.Equal(header.Magic[:], PackMagic[:]) {
		return nil, fmt.Errorf("%w: data is not a sealed pack payload", ErrCorruptedCiphertext)
	}
	if header.Version != packFormatVersion {
		return nil, fmt.Errorf("%w: unsupported format version %d", ErrCorruptedCiphertext, header.Version)
	}
	want := keyCheckValue(key)
	if !hmac.Equal(header.KeyCheck[:], want[:]) {
		return nil, ErrWrongPassword
	}
	return &header, nil
}

// Writes a sealed payload header for key to `output`.
func writeHeader(output io.Writer, key []byte) error {
	header := PackHeader{
		Magic:    PackMagic,
		Version:  packFormatVersion,
		KeyCheck: keyCheckValue(key),
	}
	return binary.Write(output, binary.LittleEndian, header)
}
