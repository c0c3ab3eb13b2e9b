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
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// ignoreCiphertext compares packs field by field, excluding the sealed
// payloads whose nonces differ on every encryption.
var ignoreCiphertext = cmp.Options{
	cmpopts.IgnoreFields(DeviceKeyPack{}, "Encrypted"),
	cmpopts.IgnoreFields(AuthKeyPack{}, "Encrypted"),
	cmpopts.IgnoreFields(CloudKeyPack{}, "Encrypted"),
}

func TestRestorePathsAreEquivalent(t *testing.T) {
	info, packs := newTestWallet(t)
	for _, tc := range []struct {
		name    string
		restore func() (*RestoredData, error)
	}{
		{"device+auth", func() (*RestoredData, error) { return RestoreFromDeviceAndAuth(packs.Device, packs.Auth) }},
		{"device+cloud", func() (*RestoredData, error) { return RestoreFromDeviceAndCloud(packs.Device, packs.Cloud) }},
		{"auth+cloud", func() (*RestoredData, error) { return RestoreFromAuthAndCloud(packs.Auth, packs.Cloud) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.restore()
			if err != nil {
				t.Fatalf("restore err = %v, want nil", err)
			}
			if got.Mnemonic != info.Mnemonic {
				t.Errorf("restored mnemonic differs from the original")
			}
			if diff := cmp.Diff(*packs, got.Packs, ignoreCiphertext); diff != "" {
				t.Errorf("regenerated packs differ (-want +got):\n%s", diff)
			}
			if !bytes.Equal(got.Device.DeviceKey, info.DeviceKey) || !bytes.Equal(got.Auth.AuthKey, info.AuthKey) || !bytes.Equal(got.Cloud.CloudKey, info.CloudKey) {
				t.Errorf("restored payloads do not carry the original shares")
			}
			for _, xs := range []XCoordinates{got.Device.XCoordinates, got.Auth.XCoordinates, got.Cloud.XCoordinates} {
				if xs != info.XCoordinates {
					t.Errorf("restored x-coordinates = %+v, want %+v", xs, info.XCoordinates)
				}
			}
			if got.Auth.UserInfo != testUserInfo {
				t.Errorf("restored user info = %+v, want %+v", got.Auth.UserInfo, testUserInfo)
			}
		})
	}
}

func TestRestoreChainSurvivesRepeatedLoss(t *testing.T) {
	info, packs := newTestWallet(t)

	// Lose the auth pack.
	first, err := RestoreFromDeviceAndCloud(packs.Device, packs.Cloud)
	if err != nil {
		t.Fatalf("RestoreFromDeviceAndCloud() err = %v, want nil", err)
	}
	if first.Mnemonic != info.Mnemonic {
		t.Fatalf("first restore produced a different mnemonic")
	}
	// Recover again from the newly produced device and auth packs.
	second, err := RestoreFromDeviceAndAuth(first.Packs.Device, first.Packs.Auth)
	if err != nil {
		t.Fatalf("RestoreFromDeviceAndAuth() err = %v, want nil", err)
	}
	if second.Mnemonic != info.Mnemonic {
		t.Fatalf("second restore produced a different mnemonic")
	}
	// And once more, without the device.
	third, err := RestoreFromAuthAndCloud(second.Packs.Auth, first.Packs.Cloud)
	if err != nil {
		t.Fatalf("RestoreFromAuthAndCloud() err = %v, want nil", err)
	}
	if third.Mnemonic != info.Mnemonic {
		t.Fatalf("third restore produced a different mnemonic")
	}
	if diff := cmp.Diff(*packs, third.Packs, ignoreCiphertext); diff != "" {
		t.Errorf("packs drifted across restores (-want +got):\n%s", diff)
	}
}

func TestRestoreDispatch(t *testing.T) {
	info, packs := newTestWallet(t)
	_, other := newTestWallet(t)

	for _, tc := range []struct {
		name string
		in   RestoreInput
		want error
	}{
		{name: "all three", in: RestoreInput{Device: packs.Device, Auth: packs.Auth, Cloud: packs.Cloud}},
		{name: "device+auth", in: RestoreInput{Device: packs.Device, Auth: packs.Auth}},
		{name: "device+cloud", in: RestoreInput{Device: packs.Device, Cloud: packs.Cloud}},
		{name: "auth+cloud", in: RestoreInput{Auth: packs.Auth, Cloud: packs.Cloud}},
		{name: "device only", in: RestoreInput{Device: packs.Device}, want: ErrInsufficientShares},
		{name: "nothing", want: ErrInsufficientShares},
		{name: "mixed device and auth", in: RestoreInput{Device: packs.Device, Auth: other.Auth}, want: ErrPackSetMismatch},
		{name: "mixed cloud among three", in: RestoreInput{Device: packs.Device, Auth: packs.Auth, Cloud: other.Cloud}, want: ErrPackSetMismatch},
		{name: "mixed auth and cloud", in: RestoreInput{Auth: packs.Auth, Cloud: other.Cloud}, want: ErrPackSetMismatch},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Restore(tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Restore() err = %v, want %v", err, tc.want)
			}
			if tc.want == nil && got.Mnemonic != info.Mnemonic {
				t.Errorf("Restore() produced a different mnemonic")
			}
		})
	}
}

func TestRestoreRejectsMixedPackSetsBeforeDecrypting(t *testing.T) {
	_, packs := newTestWallet(t)
	_, other := newTestWallet(t)
	// Garbage ciphertext would fail decryption; the mismatch must be reported first.
	auth := *other.Auth
	auth.Encrypted = []byte("garbage")
	cloud := *other.Cloud
	cloud.Encrypted = []byte("garbage")

	if _, err := RestoreFromDeviceAndAuth(packs.Device, &auth); !errors.Is(err, ErrPackSetMismatch) {
		t.Errorf("RestoreFromDeviceAndAuth() err = %v, want %v", err, ErrPackSetMismatch)
	}
	if _, err := RestoreFromDeviceAndCloud(packs.Device, &cloud); !errors.Is(err, ErrPackSetMismatch) {
		t.Errorf("RestoreFromDeviceAndCloud() err = %v, want %v", err, ErrPackSetMismatch)
	}
	if _, err := RestoreFromAuthAndCloud(packs.Auth, &cloud); !errors.Is(err, ErrPackSetMismatch) {
		t.Errorf("RestoreFromAuthAndCloud() err = %v, want %v", err, ErrPackSetMismatch)
	}
}

func TestRestoreWithCorruptedCredentials(t *testing.T) {
	_, packs := newTestWallet(t)

	badPwd := *packs.Device
	badPwd.AuthKeyPwd = testPassword()
	badCloudPwd := *packs.Device
	badCloudPwd.CloudKeyPwd = testPassword()
	badSlice := *packs.Cloud
	badSlice.AuthKeyPwdSlice = bytes.Repeat([]byte{7}, SliceBytes)
	noPwd := *packs.Device
	noPwd.AuthKeyPwd = ""
	noSlice := *packs.Cloud
	noSlice.AuthKeyPwdSlice = nil
	corrupt := *packs.Auth
	corrupt.Encrypted = bytes.Clone(packs.Auth.Encrypted)
	corrupt.Encrypted[len(corrupt.Encrypted)-1] ^= 1
	badID := *packs.Auth
	badID.PackSetID = "NOT-A-PACK-SET"
	badIDDevice := *packs.Device
	badIDDevice.PackSetID = "NOT-A-PACK-SET"

	for _, tc := range []struct {
		name    string
		restore func() (*RestoredData, error)
		want    error
	}{
		{"wrong auth password", func() (*RestoredData, error) { return RestoreFromDeviceAndAuth(&badPwd, packs.Auth) }, ErrWrongPassword},
		{"wrong cloud password", func() (*RestoredData, error) { return RestoreFromDeviceAndCloud(&badCloudPwd, packs.Cloud) }, ErrWrongPassword},
		{"wrong auth slice", func() (*RestoredData, error) { return RestoreFromAuthAndCloud(packs.Auth, &badSlice) }, ErrWrongPassword},
		{"missing auth password", func() (*RestoredData, error) { return RestoreFromDeviceAndAuth(&noPwd, packs.Auth) }, ErrIncompletePack},
		{"missing auth slice", func() (*RestoredData, error) { return RestoreFromAuthAndCloud(packs.Auth, &noSlice) }, ErrIncompletePack},
		{"corrupted auth ciphertext", func() (*RestoredData, error) { return RestoreFromDeviceAndAuth(packs.Device, &corrupt) }, ErrCorruptedCiphertext},
		{"invalid pack set id", func() (*RestoredData, error) { return RestoreFromDeviceAndAuth(&badIDDevice, &badID) }, ErrInvalidPackSetID},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.restore()
			if !errors.Is(err, tc.want) {
				t.Fatalf("restore err = %v, want %v", err, tc.want)
			}
			if got != nil {
				t.Errorf("restore returned data alongside an error")
			}
			if errors.Is(tc.want, ErrDecryptionFailed) && !errors.Is(err, ErrDecryptionFailed) {
				t.Errorf("restore err = %v, want a decryption failure", err)
			}
		})
	}
}

func TestRestoreMnemonicFromShares(t *testing.T) {
	info, err := GenerateMnemonicInfo()
	if err != nil {
		t.Fatalf("GenerateMnemonicInfo() err = %v, want nil", err)
	}
	for _, tc := range []struct {
		name                string
		device, cloud, auth []byte
		want                error
	}{
		{name: "all", device: info.DeviceKey, cloud: info.CloudKey, auth: info.AuthKey},
		{name: "device+cloud", device: info.DeviceKey, cloud: info.CloudKey},
		{name: "device+auth", device: info.DeviceKey, auth: info.AuthKey},
		{name: "cloud+auth", cloud: info.CloudKey, auth: info.AuthKey},
		{name: "device only", device: info.DeviceKey, want: ErrInsufficientShares},
		{name: "none", want: ErrInsufficientShares},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RestoreMnemonicFromShares(tc.device, tc.cloud, tc.auth)
			if !errors.Is(err, tc.want) {
				t.Fatalf("RestoreMnemonicFromShares() err = %v, want %v", err, tc.want)
			}
			if tc.want == nil && got != info.Mnemonic {
				t.Errorf("RestoreMnemonicFromShares() returned a different mnemonic")
			}
		})
	}
}
