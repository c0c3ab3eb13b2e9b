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
	"testing"

	"github.com/google/tink/go/subtle/random"
	"golang.org/x/crypto/pbkdf2"
)

func TestDerivePasswordIsDeterministic(t *testing.T) {
	slice := random.GetRandomBytes(SliceBytes)
	for _, tc := range []struct {
		role      Role
		extraSalt string
	}{
		{RoleDevice, ""},
		{RoleAuth, ""},
		{RoleCloud, "user-123456"},
	} {
		t.Run(string(tc.role), func(t *testing.T) {
			first, err := DerivePassword(slice, tc.role, tc.extraSalt)
			if err != nil {
				t.Fatalf("DerivePassword() err = %v, want nil", err)
			}
			second, err := DerivePassword(slice, tc.role, tc.extraSalt)
			if err != nil {
				t.Fatalf("DerivePassword() err = %v, want nil", err)
			}
			if first != second {
				t.Errorf("DerivePassword() = %q then %q, want equal", first, second)
			}
			raw, err := base64.StdEncoding.DecodeString(first)
			if err != nil || len(raw) != derivedKeyBytes {
				t.Errorf("DerivePassword() = %q, want base64 of %d bytes", first, derivedKeyBytes)
			}
		})
	}
}

func TestDerivePasswordMatchesPBKDF2(t *testing.T) {
	slice := random.GetRandomBytes(SliceBytes)
	want := base64.StdEncoding.EncodeToString(
		pbkdf2.Key(slice, []byte("user-1"+"67341352-B635-45C6-BE7A-A35E0CDBFC0D"), 1000, 32, sha256.New))
	got, err := DeriveCloudPassword(slice, "user-1")
	if err != nil {
		t.Fatalf("DeriveCloudPassword() err = %v, want nil", err)
	}
	if got != want {
		t.Errorf("DeriveCloudPassword() = %q, want %q", got, want)
	}
}

func TestDerivePasswordSeparatesRolesAndUsers(t *testing.T) {
	slice := random.GetRandomBytes(SliceBytes)
	device, _ := DeriveDevicePassword(slice)
	auth, _ := DeriveAuthPassword(slice)
	cloudA, _ := DeriveCloudPassword(slice, "user-a")
	cloudB, _ := DeriveCloudPassword(slice, "user-b")
	seen := map[string]bool{}
	for _, p := range []string{device, auth, cloudA, cloudB} {
		if seen[p] {
			t.Fatalf("derived password %q repeated across roles or users", p)
		}
		seen[p] = true
	}
}

func TestDerivePasswordRejectsBadInput(t *testing.T) {
	if _, err := DerivePassword(random.GetRandomBytes(SliceBytes), Role("other"), ""); err == nil {
		t.Errorf("DerivePassword(unknown role) err = nil, want error")
	}
	if _, err := DerivePassword(nil, RoleDevice, ""); err == nil {
		t.Errorf("DerivePassword(empty slice) err = nil, want error")
	}
}

func TestHashPassword(t *testing.T) {
	raw := random.GetRandomBytes(32)
	pwd := base64.StdEncoding.EncodeToString(raw)
	sum := sha256.Sum256(raw)
	want := base64.StdEncoding.EncodeToString(sum[:])
	got, err := HashPassword(pwd)
	if err != nil {
		t.Fatalf("HashPassword() err = %v, want nil", err)
	}
	if got != want {
		t.Errorf("HashPassword() = %q, want %q", got, want)
	}
	if _, err := HashPassword("not base64!"); err == nil {
		t.Errorf("HashPassword(invalid) err = nil, want error")
	}
}
