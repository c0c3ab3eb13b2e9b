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

// Package enablement restores a wallet on a device from whichever packs are
// reachable, trying local sources before remote ones.
package enablement

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoogleCloudPlatform/keyless/keyless"
	"github.com/GoogleCloudPlatform/keyless/keyless/custody"
	"github.com/GoogleCloudPlatform/keyless/keyless/transport"
	glog "github.com/golang/glog"
)

// Recovery paths, in the order they are attempted.
const (
	PathDeviceAuth         = "device+auth"
	PathAuthCloud          = "auth+cloud"
	PathDeviceCloud        = "device+cloud"
	PathDevicePromptedAuth = "device+prompted-auth"
)

// ErrDeclined is returned by an AuthPrompter when the user does not provide
// the auth pack. A prompter returning no pack and no error is treated the
// same way.
var ErrDeclined = errors.New("enablement: user declined")

// errNoSource marks a path whose inputs are not configured.
var errNoSource = errors.New("enablement: source not configured")

// DeviceStore holds the device pack locally.
type DeviceStore interface {
	Load(ctx context.Context, packSetID string) (*keyless.DeviceKeyPack, error)
	Save(ctx context.Context, pack *keyless.DeviceKeyPack) (string, error)
	Remove(packSetID string) error
}

// AuthCache holds the auth pack in memory.
type AuthCache interface {
	Get(ctx context.Context, packSetID string) (*keyless.AuthKeyPack, error)
	Put(ctx context.Context, pack *keyless.AuthKeyPack) error
	ClearPackSet(packSetID string)
}

// AuthPrompter obtains the auth pack interactively, typically from the
// account service after an e-mail one-time password.
type AuthPrompter interface {
	PromptAuthPack(ctx context.Context, packSetID string) (*keyless.AuthKeyPack, error)
}

// CloudSource fetches the cloud pack from the user's cloud storage.
type CloudSource interface {
	FetchCloudPack(ctx context.Context, packSetID string) (*keyless.CloudKeyPack, error)
}

// TransportSource is a CloudSource backed by a pack transport.
type TransportSource struct {
	Transport transport.Transport
}

// FetchCloudPack implements CloudSource.
func (s TransportSource) FetchCloudPack(ctx context.Context, packSetID string) (*keyless.CloudKeyPack, error) {
	return transport.FetchCloudPack(ctx, s.Transport, packSetID)
}

// Enabler runs the enablement fallback chain. Nil collaborators disable the
// paths that need them.
type Enabler struct {
	Device   DeviceStore
	Auth     AuthCache
	Prompter AuthPrompter
	// Clouds maps a cloud key provider name to its source.
	Clouds  map[string]CloudSource
	Metrics *Metrics
}

type step struct {
	path    string
	attempt func(ctx context.Context, packSetID string) (*keyless.RestoredData, error)
}

func (e *Enabler) steps() []step {
	return []step{
		{path: PathDeviceAuth, attempt: e.fromDeviceAndAuth},
		{path: PathAuthCloud, attempt: e.fromAuthAndCloud},
		{path: PathDeviceCloud, attempt: e.fromDeviceAndCloud},
		{path: PathDevicePromptedAuth, attempt: e.fromDeviceAndPromptedAuth},
	}
}

// recoverable reports whether err allows moving on to the next path.
// Pack set mismatches and invalid ids are never recoverable.
func recoverable(err error) bool {
	switch {
	case errors.Is(err, keyless.ErrPackSetMismatch), errors.Is(err, keyless.ErrInvalidPackSetID):
		return false
	case errors.Is(err, keyless.ErrDecryptionFailed),
		errors.Is(err, custody.ErrNotFound),
		errors.Is(err, custody.ErrAuthFailed),
		errors.Is(err, custody.ErrSessionLocked),
		errors.Is(err, custody.ErrTierUnavailable),
		errors.Is(err, transport.ErrNotFound),
		errors.Is(err, ErrDeclined),
		errors.Is(err, errNoSource):
		return true
	}
	return false
}

// Enable restores the wallet of packSetID. It returns (nil, nil) when no path
// has the packs it needs.
func (e *Enabler) Enable(ctx context.Context, packSetID string) (*keyless.RestoredData, error) {
	if err := keyless.ValidatePackSetID(packSetID); err != nil {
		return nil, err
	}
	for _, s := range e.steps() {
		data, err := s.attempt(ctx, packSetID)
		if err == nil {
			e.Metrics.observe(s.path, resultRestored)
			glog.Infof("Enabled wallet %s via %s", packSetID, s.path)
			return data, nil
		}
		if !recoverable(err) {
			e.Metrics.observe(s.path, resultError)
			return nil, fmt.Errorf("enabling via %s: %w", s.path, err)
		}
		e.Metrics.observe(s.path, resultSkipped)
		glog.Warningf("Cannot enable wallet %s via %s: %v", packSetID, s.path, err)
	}
	glog.Warningf("No recovery path available for wallet %s", packSetID)
	return nil, nil
}

// Disable removes the wallet of packSetID from this device: the device pack
// leaves local custody and any cached auth pack is dropped. Remote backups are
// left alone.
func (e *Enabler) Disable(packSetID string) error {
	if err := keyless.ValidatePackSetID(packSetID); err != nil {
		return err
	}
	if e.Auth != nil {
		e.Auth.ClearPackSet(packSetID)
	}
	if e.Device != nil {
		if err := e.Device.Remove(packSetID); err != nil {
			return fmt.Errorf("removing device pack: %w", err)
		}
	}
	glog.Infof("Disabled wallet %s on this device", packSetID)
	return nil
}

func (e *Enabler) loadDevice(ctx context.Context, packSetID string) (*keyless.DeviceKeyPack, error) {
	if e.Device == nil {
		return nil, fmt.Errorf("%w: device store", errNoSource)
	}
	return e.Device.Load(ctx, packSetID)
}

func (e *Enabler) cachedAuth(ctx context.Context, packSetID string) (*keyless.AuthKeyPack, error) {
	if e.Auth == nil {
		return nil, fmt.Errorf("%w: auth cache", errNoSource)
	}
	return e.Auth.Get(ctx, packSetID)
}

// authPack returns the cached auth pack, or prompts for it and caches the
// answer.
func (e *Enabler) authPack(ctx context.Context, packSetID string) (*keyless.AuthKeyPack, error) {
	pack, err := e.cachedAuth(ctx, packSetID)
	if err == nil || !recoverable(err) {
		return pack, err
	}
	if e.Prompter == nil {
		return nil, err
	}
	pack, err = e.Prompter.PromptAuthPack(ctx, packSetID)
	if err != nil {
		return nil, err
	}
	if pack == nil {
		return nil, ErrDeclined
	}
	if pack.PackSetID != packSetID {
		return nil, fmt.Errorf("%w: prompted auth pack belongs to %s", keyless.ErrPackSetMismatch, pack.PackSetID)
	}
	e.cacheAuth(ctx, pack)
	return pack, nil
}

func (e *Enabler) cacheAuth(ctx context.Context, pack *keyless.AuthKeyPack) {
	if e.Auth == nil {
		return
	}
	if err := e.Auth.Put(ctx, pack); err != nil {
		glog.Warningf("Failed to cache auth pack for pack set %s: %v", pack.PackSetID, err)
	}
}

func (e *Enabler) fetchCloud(ctx context.Context, provider, packSetID string) (*keyless.CloudKeyPack, error) {
	src, ok := e.Clouds[provider]
	if !ok || src == nil {
		return nil, fmt.Errorf("%w: cloud provider %q", errNoSource, provider)
	}
	return src.FetchCloudPack(ctx, packSetID)
}

func (e *Enabler) fromDeviceAndAuth(ctx context.Context, packSetID string) (*keyless.RestoredData, error) {
	device, err := e.loadDevice(ctx, packSetID)
	if err != nil {
		return nil, err
	}
	auth, err := e.cachedAuth(ctx, packSetID)
	if err != nil {
		return nil, err
	}
	return keyless.RestoreFromDeviceAndAuth(device, auth)
}

// fromAuthAndCloud only prompts for the auth pack when no device pack is held
// locally. Otherwise the device+cloud path needs no user action and runs
// first.
func (e *Enabler) fromAuthAndCloud(ctx context.Context, packSetID string) (*keyless.RestoredData, error) {
	auth, err := e.cachedAuth(ctx, packSetID)
	if err != nil && recoverable(err) && !e.holdsDevice(ctx, packSetID) {
		auth, err = e.authPack(ctx, packSetID)
	}
	if err != nil {
		return nil, err
	}
	cloud, err := e.fetchCloud(ctx, auth.CloudKeyProvider, packSetID)
	if err != nil {
		return nil, err
	}
	data, err := keyless.RestoreFromAuthAndCloud(auth, cloud)
	if err != nil {
		return nil, err
	}
	if e.Device != nil {
		tier, err := e.Device.Save(ctx, data.Packs.Device)
		if err != nil {
			glog.Warningf("Failed to save restored device pack for pack set %s: %v", packSetID, err)
		} else {
			glog.Infof("Saved restored device pack for pack set %s to %s storage", packSetID, tier)
		}
	}
	return data, nil
}

func (e *Enabler) fromDeviceAndCloud(ctx context.Context, packSetID string) (*keyless.RestoredData, error) {
	device, err := e.loadDevice(ctx, packSetID)
	if err != nil {
		return nil, err
	}
	cloud, err := e.fetchCloud(ctx, device.CloudKeyProvider, packSetID)
	if err != nil {
		return nil, err
	}
	data, err := keyless.RestoreFromDeviceAndCloud(device, cloud)
	if err != nil {
		return nil, err
	}
	e.cacheAuth(ctx, data.Packs.Auth)
	return data, nil
}

// fromDeviceAndPromptedAuth is the last resort when the cloud pack cannot be
// fetched: the user is asked for the auth pack to pair with the local device
// pack.
func (e *Enabler) fromDeviceAndPromptedAuth(ctx context.Context, packSetID string) (*keyless.RestoredData, error) {
	device, err := e.loadDevice(ctx, packSetID)
	if err != nil {
		return nil, err
	}
	auth, err := e.authPack(ctx, packSetID)
	if err != nil {
		return nil, err
	}
	return keyless.RestoreFromDeviceAndAuth(device, auth)
}

func (e *Enabler) holdsDevice(ctx context.Context, packSetID string) bool {
	_, err := e.loadDevice(ctx, packSetID)
	return err == nil
}
