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
	"errors"
	"fmt"

	"github.com/GoogleCloudPlatform/keyless/keyless/shares"
)

var (
	// ErrInsufficientShares is returned when fewer than two of the three
	// shares or packs are supplied.
	ErrInsufficientShares = shares.ErrInsufficientShares
	// ErrPackSetMismatch is returned when packs from different pack sets are
	// combined. It is detected before any decryption.
	ErrPackSetMismatch = errors.New("packs belong to different pack sets")
	// ErrDecryptionFailed is returned when a payload cannot be decrypted.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrWrongPassword refines ErrDecryptionFailed: the password does not
	// match the one the payload was sealed with.
	ErrWrongPassword = fmt.Errorf("%w: wrong password", ErrDecryptionFailed)
	// ErrCorruptedCiphertext refines ErrDecryptionFailed: the password is
	// right but the ciphertext was altered or truncated.
	ErrCorruptedCiphertext = fmt.Errorf("%w: corrupted ciphertext", ErrDecryptionFailed)
	// ErrMalformedPayload is returned when a decrypted payload does not parse.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrInvalidPackSetID is returned for pack set ids that are not 32 lowercase hex characters.
	ErrInvalidPackSetID = errors.New("invalid pack set id")
	// ErrIncompletePack is returned when a pack lacks a field a recovery path needs.
	ErrIncompletePack = errors.New("incomplete pack")
	// ErrInvalidUserInfo is returned when required user fields are missing.
	ErrInvalidUserInfo = errors.New("invalid user info")
	// ErrInconsistentShares is returned when a share's x-coordinate disagrees
	// with the recorded x-coordinates.
	ErrInconsistentShares = errors.New("inconsistent shares")
)
