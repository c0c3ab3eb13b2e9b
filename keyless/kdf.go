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
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Role names one of the three shares of a wallet.
type Role string

const (
	// RoleDevice is the share kept on the originating device.
	RoleDevice Role = "device"
	// RoleCloud is the share backed up to the user's cloud storage.
	RoleCloud Role = "cloud"
	// RoleAuth is the share held by the account service.
	RoleAuth Role = "auth"
)

const (
	pbkdf2Iterations = 1000
	derivedKeyBytes  = 32
	// SliceBytes is the size of a password slice.
	SliceBytes = 32
)

// Fixed per-role salts. The cloud role is additionally salted with the
// account user id.
var roleSalts = map[Role]string{
	RoleDevice: "99C79104-F920-407B-9C2B-F4CDBC427F91",
	RoleCloud:  "67341352-B635-45C6-BE7A-A35E0CDBFC0D",
	RoleAuth:   "1C766505-8009-4058-B09D-C8515A3F096F",
}

// DerivePassword stretches a password slice into the role's encryption
// password. The result is the base64 encoding of 32 PBKDF2-SHA256 bytes
// salted with extraSalt followed by the role's fixed salt.
func DerivePassword(slice []byte, role Role, extraSalt string) (string, error) {
	fixed, ok := roleSalts[role]
	if !ok {
		return "", fmt.Errorf("unknown role %q", role)
	}
	if len(slice) == 0 {
		return "", fmt.Errorf("%w: empty %s password slice", ErrIncompletePack, role)
	}
	key := pbkdf2.Key(slice, []byte(extraSalt+fixed), pbkdf2Iterations, derivedKeyBytes, sha256.New)
	return base64.StdEncoding.EncodeToString(key), nil
}

// DeriveDevicePassword derives the device role password.
func DeriveDevicePassword(slice []byte) (string, error) {
	return DerivePassword(slice, RoleDevice, "")
}

// DeriveAuthPassword derives the auth role password.
func DeriveAuthPassword(slice []byte) (string, error) {
	return DerivePassword(slice, RoleAuth, "")
}

// DeriveCloudPassword derives the cloud role password, bound to the account
// user id.
func DeriveCloudPassword(slice []byte, accountUserID string) (string, error) {
	return DerivePassword(slice, RoleCloud, accountUserID)
}

// HashPassword returns base64(SHA-256(password bytes)). It is only used to
// check that a password is the one a pack expects.
func HashPassword(password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(password)
	if err != nil {
		return "", fmt.Errorf("password is not base64: %v", err)
	}
	sum := sha256.Sum256(raw)
	return base64.StdEncoding.EncodeToString(sum[:]), nil
}
