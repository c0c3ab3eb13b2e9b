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

// Package custody keeps a wallet's device pack on local storage and its auth
// pack in process memory, both sealed under a key derived from the session
// passcode.
package custody

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no entry exists for a key.
	ErrNotFound = errors.New("custody: not found")
	// ErrTierUnavailable is returned by a storage tier that cannot be used on this host.
	ErrTierUnavailable = errors.New("custody: storage tier unavailable")
	// ErrSessionLocked is returned by a PasscodeProvider while the session is locked.
	ErrSessionLocked = errors.New("custody: session locked")
	// ErrAuthFailed is returned when a sealed entry fails authentication,
	// either because the passcode changed or the entry was tampered with.
	ErrAuthFailed = errors.New("custody: authentication failed")
)

// PasscodeProvider supplies the passcode of the unlocked session.
type PasscodeProvider interface {
	// Passcode returns the current passcode, or ErrSessionLocked.
	Passcode(ctx context.Context) (string, error)
}

// StaticPasscode is a PasscodeProvider that always returns the same passcode.
// An empty passcode behaves as a locked session.
type StaticPasscode string

// Passcode implements PasscodeProvider.
func (p StaticPasscode) Passcode(context.Context) (string, error) {
	if p == "" {
		return "", ErrSessionLocked
	}
	return string(p), nil
}
