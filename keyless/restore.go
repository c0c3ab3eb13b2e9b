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
)

// RestoreInput holds whichever packs are available. At least two are needed.
type RestoreInput struct {
	Device *DeviceKeyPack
	Auth   *AuthKeyPack
	Cloud  *CloudKeyPack
}

// RestoreMnemonicFromShares rebuilds the mnemonic from any two or three of
// the shares. Empty shares are treated as absent.
func RestoreMnemonicFromShares(deviceKey, cloudKey, authKey []byte) (string, error) {
	var present [][]byte
	for _, s := range [][]byte{deviceKey, cloudKey, authKey} {
		if len(s) > 0 {
			present = append(present, s)
		}
	}
	if len(present) < threshold {
		return "", fmt.Errorf("%w: got %d of %d shares", ErrInsufficientShares, len(present), numShares)
	}
	entropy, err := shares.CombineShares(present, threshold)
	if err != nil {
		return "", err
	}
	return mnemonic.FromEntropy(entropy)
}

// checkPackSet rejects packs from different pack sets before any decryption.
func checkPackSet(a, b string) error {
	if a != b {
		return fmt.Errorf("%w: %s and %s", ErrPackSetMismatch, a, b)
	}
	return ValidatePackSetID(a)
}

// checkPassword compares the hash of password with the hash a pack expects.
func checkPassword(role Role, password, wantHash string) error {
	if password == "" {
		return fmt.Errorf("%w: no %s password", ErrIncompletePack, role)
	}
	if wantHash == "" {
		return nil
	}
	got, err := HashPassword(password)
	if err != nil || got != wantHash {
		return fmt.Errorf("%s pack: %w", role, ErrWrongPassword)
	}
	return nil
}

func openDevice(p *DeviceKeyPack, slice []byte) (*DevicePayload, error) {
	pwd, err := DeriveDevicePassword(slice)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(RoleDevice, pwd, p.DeviceKeyPwdHash); err != nil {
		return nil, err
	}
	return DecryptDevicePayload(p, pwd)
}

func openAuth(p *AuthKeyPack, pwd string) (*AuthPayload, error) {
	if err := checkPassword(RoleAuth, pwd, p.AuthKeyPwdHash); err != nil {
		return nil, err
	}
	return DecryptAuthPayload(p, pwd)
}

func openCloud(p *CloudKeyPack, pwd string) (*CloudPayload, error) {
	if err := checkPassword(RoleCloud, pwd, p.CloudKeyPwdHash); err != nil {
		return nil, err
	}
	return DecryptCloudPayload(p, pwd)
}

func sameCoordinates(a, b XCoordinates) error {
	if a != b {
		return fmt.Errorf("%w: packs record different x-coordinates", ErrInconsistentShares)
	}
	return nil
}

// rebuild recovers the mnemonic from the two known shares, recomputes the
// missing share at its recorded x and regenerates the pack triple with the
// original slices and x-coordinates.
func rebuild(packSetID string, userInfo UserInfo, info *MnemonicInfo, known []byte, missing *[]byte, missingX byte) (*Packs, error) {
	m, err := RestoreMnemonicFromShares(info.DeviceKey, info.CloudKey, info.AuthKey)
	if err != nil {
		return nil, err
	}
	entropy, err := mnemonic.ToEntropy(m)
	if err != nil {
		return nil, err
	}
	if *missing, err = shares.RecoverMissingShare(entropy, known, missingX); err != nil {
		return nil, err
	}
	info.Mnemonic = m
	return GeneratePacks(userInfo, info, packSetID)
}

// RestoreFromDeviceAndAuth restores a wallet from its device and auth packs.
// The device pack carries the auth password; the auth payload carries the
// device slice.
func RestoreFromDeviceAndAuth(device *DeviceKeyPack, auth *AuthKeyPack) (*RestoredData, error) {
	if err := checkPackSet(device.PackSetID, auth.PackSetID); err != nil {
		return nil, err
	}
	authData, err := openAuth(auth, device.AuthKeyPwd)
	if err != nil {
		return nil, err
	}
	deviceData, err := openDevice(device, authData.DeviceKeyPwdSlice)
	if err != nil {
		return nil, err
	}
	if err := sameCoordinates(authData.XCoordinates, deviceData.XCoordinates); err != nil {
		return nil, err
	}
	xs := authData.XCoordinates
	if err := checkShare(RoleDevice, deviceData.DeviceKey, xs.DeviceKeyX); err != nil {
		return nil, err
	}
	if err := checkShare(RoleAuth, authData.AuthKey, xs.AuthKeyX); err != nil {
		return nil, err
	}
	info := &MnemonicInfo{
		XCoordinates:      xs,
		DeviceKey:         deviceData.DeviceKey,
		AuthKey:           authData.AuthKey,
		DeviceKeyPwdSlice: authData.DeviceKeyPwdSlice,
		CloudKeyPwdSlice:  authData.CloudKeyPwdSlice,
		AuthKeyPwdSlice:   device.AuthKeyPwdSlice,
	}
	packs, err := rebuild(device.PackSetID, authData.UserInfo, info, info.DeviceKey, &info.CloudKey, xs.CloudKeyX)
	if err != nil {
		return nil, err
	}
	cloudData, err := DecryptCloudPayload(packs.Cloud, packs.Device.CloudKeyPwd)
	if err != nil {
		return nil, err
	}
	glog.Infof("Restored pack set %s from device and auth packs", device.PackSetID)
	return &RestoredData{Mnemonic: info.Mnemonic, Packs: *packs, Device: deviceData, Auth: authData, Cloud: cloudData}, nil
}

// RestoreFromDeviceAndCloud restores a wallet from its device and cloud
// packs. The device pack carries the cloud password and the auth slice; the
// cloud payload carries the device slice.
func RestoreFromDeviceAndCloud(device *DeviceKeyPack, cloud *CloudKeyPack) (*RestoredData, error) {
	if err := checkPackSet(device.PackSetID, cloud.PackSetID); err != nil {
		return nil, err
	}
	cloudData, err := openCloud(cloud, device.CloudKeyPwd)
	if err != nil {
		return nil, err
	}
	deviceData, err := openDevice(device, cloudData.DeviceKeyPwdSlice)
	if err != nil {
		return nil, err
	}
	if err := sameCoordinates(cloudData.XCoordinates, deviceData.XCoordinates); err != nil {
		return nil, err
	}
	xs := cloudData.XCoordinates
	if err := checkShare(RoleDevice, deviceData.DeviceKey, xs.DeviceKeyX); err != nil {
		return nil, err
	}
	if err := checkShare(RoleCloud, cloudData.CloudKey, xs.CloudKeyX); err != nil {
		return nil, err
	}
	info := &MnemonicInfo{
		XCoordinates:      xs,
		DeviceKey:         deviceData.DeviceKey,
		CloudKey:          cloudData.CloudKey,
		DeviceKeyPwdSlice: cloudData.DeviceKeyPwdSlice,
		CloudKeyPwdSlice:  device.CloudKeyPwdSlice,
		AuthKeyPwdSlice:   device.AuthKeyPwdSlice,
	}
	packs, err := rebuild(device.PackSetID, cloudData.UserInfo, info, info.DeviceKey, &info.AuthKey, xs.AuthKeyX)
	if err != nil {
		return nil, err
	}
	authData, err := DecryptAuthPayload(packs.Auth, packs.Device.AuthKeyPwd)
	if err != nil {
		return nil, err
	}
	glog.Infof("Restored pack set %s from device and cloud packs", device.PackSetID)
	return &RestoredData{Mnemonic: info.Mnemonic, Packs: *packs, Device: deviceData, Auth: authData, Cloud: cloudData}, nil
}

// RestoreFromAuthAndCloud restores a wallet from its auth and cloud packs.
// The cloud pack carries the auth slice; the auth payload carries the cloud
// and device slices along with the account user id that salts the cloud
// password.
func RestoreFromAuthAndCloud(auth *AuthKeyPack, cloud *CloudKeyPack) (*RestoredData, error) {
	if err := checkPackSet(auth.PackSetID, cloud.PackSetID); err != nil {
		return nil, err
	}
	if len(cloud.AuthKeyPwdSlice) == 0 {
		return nil, fmt.Errorf("%w: cloud pack has no auth password slice", ErrIncompletePack)
	}
	authPwd, err := DeriveAuthPassword(cloud.AuthKeyPwdSlice)
	if err != nil {
		return nil, err
	}
	authData, err := openAuth(auth, authPwd)
	if err != nil {
		return nil, err
	}
	cloudPwd, err := DeriveCloudPassword(authData.CloudKeyPwdSlice, authData.UserInfo.AccountUserID)
	if err != nil {
		return nil, err
	}
	cloudData, err := openCloud(cloud, cloudPwd)
	if err != nil {
		return nil, err
	}
	if err := sameCoordinates(authData.XCoordinates, cloudData.XCoordinates); err != nil {
		return nil, err
	}
	xs := authData.XCoordinates
	if err := checkShare(RoleAuth, authData.AuthKey, xs.AuthKeyX); err != nil {
		return nil, err
	}
	if err := checkShare(RoleCloud, cloudData.CloudKey, xs.CloudKeyX); err != nil {
		return nil, err
	}
	info := &MnemonicInfo{
		XCoordinates:      xs,
		CloudKey:          cloudData.CloudKey,
		AuthKey:           authData.AuthKey,
		DeviceKeyPwdSlice: authData.DeviceKeyPwdSlice,
		CloudKeyPwdSlice:  authData.CloudKeyPwdSlice,
		AuthKeyPwdSlice:   cloud.AuthKeyPwdSlice,
	}
	packs, err := rebuild(auth.PackSetID, authData.UserInfo, info, info.AuthKey, &info.DeviceKey, xs.DeviceKeyX)
	if err != nil {
		return nil, err
	}
	deviceData, err := openDevice(packs.Device, cloudData.DeviceKeyPwdSlice)
	if err != nil {
		return nil, err
	}
	glog.Infof("Restored pack set %s from auth and cloud packs", auth.PackSetID)
	return &RestoredData{Mnemonic: info.Mnemonic, Packs: *packs, Device: deviceData, Auth: authData, Cloud: cloudData}, nil
}

// Restore checks that every supplied pack belongs to the same pack set and
// then restores from the first available pair, preferring device+auth, then
// device+cloud, then auth+cloud.
func Restore(in RestoreInput) (*RestoredData, error) {
	ids := map[Role]string{}
	if in.Device != nil {
		ids[RoleDevice] = in.Device.PackSetID
	}
	if in.Auth != nil {
		ids[RoleAuth] = in.Auth.PackSetID
	}
	if in.Cloud != nil {
		ids[RoleCloud] = in.Cloud.PackSetID
	}
	if len(ids) < threshold {
		return nil, fmt.Errorf("%w: got %d of %d packs", ErrInsufficientShares, len(ids), numShares)
	}
	for _, pair := range [][2]Role{{RoleDevice, RoleAuth}, {RoleDevice, RoleCloud}, {RoleAuth, RoleCloud}} {
		a, okA := ids[pair[0]]
		b, okB := ids[pair[1]]
		if okA && okB && a != b {
			return nil, fmt.Errorf("%w: %s pack %s, %s pack %s", ErrPackSetMismatch, pair[0], a, pair[1], b)
		}
	}
	switch {
	case in.Device != nil && in.Auth != nil:
		return RestoreFromDeviceAndAuth(in.Device, in.Auth)
	case in.Device != nil && in.Cloud != nil:
		return RestoreFromDeviceAndCloud(in.Device, in.Cloud)
	default:
		return RestoreFromAuthAndCloud(in.Auth, in.Cloud)
	}
}
