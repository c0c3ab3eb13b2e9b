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
	"context"
	"fmt"
	"sync"

	"github.com/GoogleCloudPlatform/keyless/keyless"
	glog "github.com/golang/glog"
	"github.com/google/tink/go/subtle/random"
)

type cachedAuthPack struct {
	packSetID string
	sealed    []byte
}

// AuthPackCache holds at most one auth pack, sealed under the session
// passcode and a per-process random secret. It never touches disk.
type AuthPackCache struct {
	session PasscodeProvider
	sealer  *Sealer

	mu    sync.Mutex
	entry *cachedAuthPack
}

// NewAuthPackCache returns an empty cache.
func NewAuthPackCache(session PasscodeProvider, params KDFParams) *AuthPackCache {
	return &AuthPackCache{
		session: session,
		sealer:  NewSealer(random.GetRandomBytes(32), params),
	}
}

func authAAD(packSetID string) []byte { return []byte("auth-pack-" + packSetID) }

// Put replaces the cached entry with pack.
func (c *AuthPackCache) Put(ctx context.Context, pack *keyless.AuthKeyPack) error {
	if err := keyless.ValidatePackSetID(pack.PackSetID); err != nil {
		return err
	}
	passcode, err := c.session.Passcode(ctx)
	if err != nil {
		return err
	}
	plaintext, err := keyless.MarshalPack(pack)
	if err != nil {
		return fmt.Errorf("serializing auth pack: %v", err)
	}
	sealed, err := c.sealer.Seal(passcode, plaintext, authAAD(pack.PackSetID))
	if err != nil {
		return fmt.Errorf("sealing auth pack: %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &cachedAuthPack{packSetID: pack.PackSetID, sealed: sealed}
	glog.V(1).Infof("Cached auth pack for pack set %s", pack.PackSetID)
	return nil
}

// Get returns the cached auth pack of packSetID, or ErrNotFound.
func (c *AuthPackCache) Get(ctx context.Context, packSetID string) (*keyless.AuthKeyPack, error) {
	c.mu.Lock()
	entry := c.entry
	c.mu.Unlock()
	if entry == nil || entry.packSetID != packSetID {
		return nil, ErrNotFound
	}

	passcode, err := c.session.Passcode(ctx)
	if err != nil {
		return nil, err
	}
	plaintext, err := c.sealer.Open(passcode, entry.sealed, authAAD(packSetID))
	if err != nil {
		return nil, fmt.Errorf("opening cached auth pack: %w", err)
	}
	return keyless.UnmarshalAuthKeyPack(plaintext)
}

// Clear drops the cached entry, if any.
func (c *AuthPackCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
}

// ClearPackSet drops the cached entry if it belongs to packSetID.
func (c *AuthPackCache) ClearPackSet(packSetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != nil && c.entry.packSetID == packSetID {
		c.entry = nil
	}
}
