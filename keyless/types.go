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

import "fmt"

// UserInfo identifies the owner of a wallet and their cloud backup account.
// It is carried inside every encrypted payload.
type UserInfo struct {
	AccountEmail      string `json:"accountEmail"`
	AccountUserID     string `json:"accountUserId"`
	CloudKeyProvider  string `json:"cloudKeyProvider"`
	CloudKeyUserID    string `json:"cloudKeyUserId"`
	CloudKeyUserEmail string `json:"cloudKeyUserEmail,omitempty"`
}

// Validate checks that the fields needed to generate packs are present.
func (u UserInfo) Validate() error {
	for _, f := range []struct {
		name, value string
	}{
		{"accountEmail", u.AccountEmail},
		{"accountUserId", u.AccountUserID},
		{"cloudKeyProvider", u.CloudKeyProvider},
		{"cloudKeyUserId", u.CloudKeyUserID},
	} {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidUserInfo, f.name)
		}
	}
	return nil
}

// XCoordinates records the x-coordinate of each share. They are fixed for the
// lifetime of a wallet.
type XCoordinates struct {
	DeviceKeyX byte `json:"deviceKeyX"`
	CloudKeyX  byte `json:"cloudKeyX"`
	AuthKeyX   byte `json:"authKeyX"`
}

// MnemonicInfo is the secret material of a freshly generated wallet. Shares
// are encoded as y-bytes followed by the x-coordinate byte.
type MnemonicInfo struct {
	Mnemonic string
	XCoordinates

	DeviceKey []byte
	CloudKey  []byte
	AuthKey   []byte

	DeviceKeyPwdSlice []byte
	CloudKeyPwdSlice  []byte
	AuthKeyPwdSlice   []byte
}

// DeviceKeyPack stays on the originating device. It carries the passwords
// and slices of both siblings in plaintext.
type DeviceKeyPack struct {
	PackSetID        string `json:"packSetId"`
	CloudKeyProvider string `json:"cloudKeyProvider"`

	AuthKeyPwd       string `json:"authKeyPwd"`
	AuthKeyPwdHash   string `json:"authKeyPwdHash"`
	AuthKeyPwdSlice  []byte `json:"authKeyPwdSlice"`
	CloudKeyPwd      string `json:"cloudKeyPwd"`
	CloudKeyPwdHash  string `json:"cloudKeyPwdHash"`
	CloudKeyPwdSlice []byte `json:"cloudKeyPwdSlice"`
	DeviceKeyPwdHash string `json:"deviceKeyPwdHash"`

	// Encrypted holds a sealed DevicePayload.
	Encrypted []byte `json:"encrypted"`
}

// AuthKeyPack is held by the account service.
type AuthKeyPack struct {
	PackSetID        string `json:"packSetId"`
	CloudKeyProvider string `json:"cloudKeyProvider"`
	AuthKeyPwdHash   string `json:"authKeyPwdHash"`

	// Encrypted holds a sealed AuthPayload.
	Encrypted []byte `json:"encrypted"`
}

// CloudKeyPack is backed up to the user's cloud storage.
type CloudKeyPack struct {
	PackSetID       string `json:"packSetId"`
	AuthKeyPwdSlice []byte `json:"authKeyPwdSlice"`
	CloudKeyPwdHash string `json:"cloudKeyPwdHash"`

	// Encrypted holds a sealed CloudPayload.
	Encrypted []byte `json:"encrypted"`
}

// DevicePayload is the plaintext of DeviceKeyPack.Encrypted.
type DevicePayload struct {
	DeviceKey    []byte       `json:"deviceKey"`
	UserInfo     UserInfo     `json:"userInfo"`
	XCoordinates XCoordinates `json:"xCoordinates"`
}

// AuthPayload is the plaintext of AuthKeyPack.Encrypted.
type AuthPayload struct {
	AuthKey           []byte       `json:"authKey"`
	CloudKeyPwdSlice  []byte       `json:"cloudKeyPwdSlice"`
	DeviceKeyPwdSlice []byte       `json:"deviceKeyPwdSlice"`
	UserInfo          UserInfo     `json:"userInfo"`
	XCoordinates      XCoordinates `json:"xCoordinates"`
}

// CloudPayload is the plaintext of CloudKeyPack.Encrypted.
type CloudPayload struct {
	CloudKey          []byte       `json:"cloudKey"`
	DeviceKeyPwdSlice []byte       `json:"deviceKeyPwdSlice"`
	UserInfo          UserInfo     `json:"userInfo"`
	XCoordinates      XCoordinates `json:"xCoordinates"`
}

// Packs is the full pack triple of one wallet.
type Packs struct {
	Device *DeviceKeyPack `json:"deviceKeyPack"`
	Auth   *AuthKeyPack   `json:"authKeyPack"`
	Cloud  *CloudKeyPack  `json:"cloudKeyPack"`
}

// RestoredData is the result of a restore: the mnemonic, a regenerated pack
// triple and the decrypted payload of every role.
type RestoredData struct {
	Mnemonic string
	Packs    Packs

	Device *DevicePayload
	Auth   *AuthPayload
	Cloud  *CloudPayload
}
