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
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/GoogleCloudPlatform/keyless/keyless"
	glog "github.com/golang/glog"
	"github.com/google/tink/go/subtle/random"
)

const (
	deviceSecretKey   = "device-secret"
	deviceSecretBytes = 32
)

// LoadOrCreateDeviceSecret returns the device-local secret from the first of
// tiers that holds it. On first use the secret is created in the first
// available tier.
func LoadOrCreateDeviceSecret(tiers ...Tier) ([]byte, error) {
	for _, tier := range tiers {
		secret, err := tier.Get(deviceSecretKey)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTierUnavailable) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading device secret from %s storage: %w", tier.Name(), err)
		}
		if len(secret) != deviceSecretBytes {
			return nil, fmt.Errorf("device secret has %d bytes, want %d", len(secret), deviceSecretBytes)
		}
		return secret, nil
	}

	secret := random.GetRandomBytes(deviceSecretBytes)
	for _, tier := range tiers {
		if err := tier.Put(deviceSecretKey, secret); err != nil {
			if errors.Is(err, ErrTierUnavailable) {
				glog.Warningf("Storage tier %s unavailable for the device secret, falling back: %v", tier.Name(), err)
				continue
			}
			return nil, fmt.Errorf("storing device secret in %s storage: %w", tier.Name(), err)
		}
		glog.Infof("Created device secret in %s storage", tier.Name())
		return secret, nil
	}
	return nil, fmt.Errorf("%w: no storage tier accepted the device secret", ErrTierUnavailable)
}

// DeviceKeyStore persists device packs, sealed under the session passcode and
// the device secret, to the most secure tier that works on this host.
type DeviceKeyStore struct {
	session PasscodeProvider
	sealer  *Sealer
	tiers   []Tier
}

// NewDeviceKeyStore returns a store that tries tiers in order.
func NewDeviceKeyStore(session PasscodeProvider, sealer *Sealer, tiers ...Tier) *DeviceKeyStore {
	return &DeviceKeyStore{session: session, sealer: sealer, tiers: tiers}
}

func devicePackKey(packSetID string) string { return "device-pack-" + packSetID }

// Save seals pack and writes it to the first available tier, then reads it
// back to verify the write. It returns the name of the tier used.
func (s *DeviceKeyStore) Save(ctx context.Context, pack *keyless.DeviceKeyPack) (string, error) {
	if err := keyless.ValidatePackSetID(pack.PackSetID); err != nil {
		return "", err
	}
	passcode, err := s.session.Passcode(ctx)
	if err != nil {
		return "", err
	}
	plaintext, err := keyless.MarshalPack(pack)
	if err != nil {
		return "", fmt.Errorf("serializing device pack: %v", err)
	}
	key := devicePackKey(pack.PackSetID)
	sealed, err := s.sealer.Seal(passcode, plaintext, []byte(key))
	if err != nil {
		return "", fmt.Errorf("sealing device pack: %v", err)
	}

	for _, tier := range s.tiers {
		if err := tier.Put(key, sealed); err != nil {
			if errors.Is(err, ErrTierUnavailable) {
				glog.Warningf("Storage tier %s unavailable, falling back: %v", tier.Name(), err)
				continue
			}
			return "", fmt.Errorf("saving device pack to %s storage: %w", tier.Name(), err)
		}
		if err := s.verify(tier, key, passcode, plaintext); err != nil {
			return "", err
		}
		glog.Infof("Saved device pack for pack set %s to %s storage", pack.PackSetID, tier.Name())
		return tier.Name(), nil
	}
	return "", fmt.Errorf("%w: no storage tier accepted the device pack", ErrTierUnavailable)
}

func (s *DeviceKeyStore) verify(tier Tier, key, passcode string, want []byte) error {
	sealed, err := tier.Get(key)
	if err != nil {
		return fmt.Errorf("reading back device pack from %s storage: %w", tier.Name(), err)
	}
	got, err := s.sealer.Open(passcode, sealed, []byte(key))
	if err != nil {
		return fmt.Errorf("reading back device pack from %s storage: %w", tier.Name(), err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("device pack read back from %s storage does not match", tier.Name())
	}
	return nil
}

// Load returns the device pack of packSetID, or ErrNotFound.
func (s *DeviceKeyStore) Load(ctx context.Context, packSetID string) (*keyless.DeviceKeyPack, error) {
	key := devicePackKey(packSetID)
	for _, tier := range s.tiers {
		sealed, err := tier.Get(key)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTierUnavailable) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading device pack from %s storage: %w", tier.Name(), err)
		}
		passcode, err := s.session.Passcode(ctx)
		if err != nil {
			return nil, err
		}
		plaintext, err := s.sealer.Open(passcode, sealed, []byte(key))
		if err != nil {
			return nil, fmt.Errorf("opening device pack from %s storage: %w", tier.Name(), err)
		}
		pack, err := keyless.UnmarshalDeviceKeyPack(plaintext)
		if err != nil {
			return nil, err
		}
		if pack.PackSetID != packSetID {
			return nil, fmt.Errorf("%w: stored device pack belongs to %s", keyless.ErrPackSetMismatch, pack.PackSetID)
		}
		glog.V(1).Infof("Loaded device pack for pack set %s from %s storage", packSetID, tier.Name())
		return pack, nil
	}
	return nil, ErrNotFound
}

// Remove deletes the device pack of packSetID from every tier.
func (s *DeviceKeyStore) Remove(packSetID string) error {
	if err := keyless.ValidatePackSetID(packSetID); err != nil {
		return err
	}
	key := devicePackKey(packSetID)
	for _, tier := range s.tiers {
		if err := tier.Delete(key); err != nil && !errors.Is(err, ErrTierUnavailable) {
			return fmt.Errorf("removing device pack from %s storage: %w", tier.Name(), err)
		}
	}
	return nil
}
