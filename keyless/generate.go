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

	"github.com/GoogleCloudPlatform/keyless/keyless/mnemonic"
	"github.com/GoogleCloudPlatform/keyless/keyless/shares"
	glog "github.com/golang/glog"
	"github.com/google/tink/go/subtle/random"
)

const (
	numShares = 3
	threshold = 2
)

// GenerateMnemonicInfo creates a new 24-word mnemonic, splits its entropy
// 2-of-3 into device, cloud and auth shares, and draws a fresh password
// slice for every role.
func GenerateMnemonicInfo() (*MnemonicInfo, error) {
	m, err := mnemonic.Generate(mnemonic.EntropyBits)
	if err != nil {
		return nil, err
	}
	entropy, err := mnemonic.ToEntropy(m)
	if err != nil {
		return nil, err
	}
	split, err := shares.SplitShares(entropy, numShares, threshold)
	if err != nil {
		return nil, err
	}
	info := &MnemonicInfo{
		Mnemonic:          m,
		DeviceKey:         split[0],
		CloudKey:          split[1],
		AuthKey:           split[2],
		DeviceKeyPwdSlice: random.GetRandomBytes(SliceBytes),
		CloudKeyPwdSlice:  random.GetRandomBytes(SliceBytes),
		AuthKeyPwdSlice:   random.GetRandomBytes(SliceBytes),
	}
	for _, s := range []struct {
		share []byte
		x     *byte
	}{
		{info.DeviceKey, &info.DeviceKeyX},
		{info.CloudKey, &info.CloudKeyX},
		{info.AuthKey, &info.AuthKeyX},
	} {
		if *s.x, err = shares.XCoordinate(s.share); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// checkShare verifies that share is present and sits at the recorded x.
func checkShare(role Role, share []byte, x byte) error {
	if len(share) == 0 {
		return fmt.Errorf("%w: missing %s key", ErrIncompletePack, role)
	}
	got, err := shares.XCoordinate(share)
	if err != nil {
		return fmt.Errorf("%w: %s key: %v", ErrInconsistentShares, role, err)
	}
	if got != x {
		return fmt.Errorf("%w: %s key has x = %d, recorded %d", ErrInconsistentShares, role, got, x)
	}
	return nil
}

func validateMnemonicInfo(info *MnemonicInfo) error {
	if info == nil {
		return fmt.Errorf("%w: mnemonic info is required", ErrIncompletePack)
	}
	for _, c := range []struct {
		role  Role
		share []byte
		x     byte
		slice []byte
	}{
		{RoleDevice, info.DeviceKey, info.DeviceKeyX, info.DeviceKeyPwdSlice},
		{RoleCloud, info.CloudKey, info.CloudKeyX, info.CloudKeyPwdSlice},
		{RoleAuth, info.AuthKey, info.AuthKeyX, info.AuthKeyPwdSlice},
	} {
		if err := checkShare(c.role, c.share, c.x); err != nil {
			return err
		}
		if len(c.slice) == 0 {
			return fmt.Errorf("%w: missing %s password slice", ErrIncompletePack, c.role)
		}
	}
	if info.DeviceKeyX == info.CloudKeyX || info.DeviceKeyX == info.AuthKeyX || info.CloudKeyX == info.AuthKeyX {
		return fmt.Errorf("%w: x-coordinates are not distinct", ErrInconsistentShares)
	}
	return nil
}

// GeneratePacks builds the device, auth and cloud packs of a wallet. Every
// field other than the encrypted payloads is a pure function of the inputs,
// so regenerating with the same info and pack set id yields equal packs.
func GeneratePacks(userInfo UserInfo, info *MnemonicInfo, packSetID string) (*Packs, error) {
	if err := ValidatePackSetID(packSetID); err != nil {
		return nil, err
	}
	if err := userInfo.Validate(); err != nil {
		return nil, err
	}
	if err := validateMnemonicInfo(info); err != nil {
		return nil, err
	}

	devicePwd, err := DeriveDevicePassword(info.DeviceKeyPwdSlice)
	if err != nil {
		return nil, err
	}
	cloudPwd, err := DeriveCloudPassword(info.CloudKeyPwdSlice, userInfo.AccountUserID)
	if err != nil {
		return nil, err
	}
	authPwd, err := DeriveAuthPassword(info.AuthKeyPwdSlice)
	if err != nil {
		return nil, err
	}
	devicePwdHash, err := HashPassword(devicePwd)
	if err != nil {
		return nil, err
	}
	cloudPwdHash, err := HashPassword(cloudPwd)
	if err != nil {
		return nil, err
	}
	authPwdHash, err := HashPassword(authPwd)
	if err != nil {
		return nil, err
	}

	xs := info.XCoordinates
	deviceSealed, err := sealPayload(&DevicePayload{
		DeviceKey:    info.DeviceKey,
		UserInfo:     userInfo,
		XCoordinates: xs,
	}, devicePwd, RoleDevice, packSetID)
	if err != nil {
		return nil, err
	}
	authSealed, err := sealPayload(&AuthPayload{
		AuthKey:           info.AuthKey,
		CloudKeyPwdSlice:  info.CloudKeyPwdSlice,
		DeviceKeyPwdSlice: info.DeviceKeyPwdSlice,
		UserInfo:          userInfo,
		XCoordinates:      xs,
	}, authPwd, RoleAuth, packSetID)
	if err != nil {
		return nil, err
	}
	cloudSealed, err := sealPayload(&CloudPayload{
		CloudKey:          info.CloudKey,
		DeviceKeyPwdSlice: info.DeviceKeyPwdSlice,
		UserInfo:          userInfo,
		XCoordinates:      xs,
	}, cloudPwd, RoleCloud, packSetID)
	if err != nil {
		return nil, err
	}

	packs := &Packs{
		Device: &DeviceKeyPack{
			PackSetID:        packSetID,
			CloudKeyProvider: userInfo.CloudKeyProvider,
			AuthKeyPwd:       authPwd,
			AuthKeyPwdHash:   authPwdHash,
			AuthKeyPwdSlice:  clone(info.AuthKeyPwdSlice),
			CloudKeyPwd:      cloudPwd,
			CloudKeyPwdHash:  cloudPwdHash,
			CloudKeyPwdSlice: clone(info.CloudKeyPwdSlice),
			DeviceKeyPwdHash: devicePwdHash,
			Encrypted:        deviceSealed,
		},
		Auth: &AuthKeyPack{
			PackSetID:        packSetID,
			CloudKeyProvider: userInfo.CloudKeyProvider,
			AuthKeyPwdHash:   authPwdHash,
			Encrypted:        authSealed,
		},
		Cloud: &CloudKeyPack{
			PackSetID:       packSetID,
			AuthKeyPwdSlice: clone(info.AuthKeyPwdSlice),
			CloudKeyPwdHash: cloudPwdHash,
			Encrypted:       cloudSealed,
		},
	}
	glog.V(1).Infof("Generated pack set %s", packSetID)
	return packs, nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
