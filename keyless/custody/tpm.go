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
	"fmt"
	"io"
	"sync"

	glog "github.com/golang/glog"
	tpmclient "github.com/google/go-tpm-tools/client"
	tpmpb "github.com/google/go-tpm-tools/proto/tpm"
	"github.com/google/go-tpm/legacy/tpm2"
	"google.golang.org/protobuf/proto"
)

// DefaultTPMPath is the kernel resource manager device.
const DefaultTPMPath = "/dev/tpmrm0"

// TPMTier seals values to the host TPM's storage root key and keeps the
// sealed blobs in a backing tier. Values can only be unsealed on the TPM that
// sealed them.
type TPMTier struct {
	path    string
	backing Tier
	open    func(path string) (io.ReadWriteCloser, error)

	mu sync.Mutex
}

// NewTPMTier returns a TPMTier using the TPM at path and storing sealed blobs in backing.
func NewTPMTier(path string, backing Tier) *TPMTier {
	return &TPMTier{
		path:    path,
		backing: backing,
		open:    func(p string) (io.ReadWriteCloser, error) { return tpm2.OpenTPM(p) },
	}
}

// Name implements Tier.
func (t *TPMTier) Name() string { return "tpm" }

func (t *TPMTier) withSRK(fn func(*tpmclient.Key) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	rwc, err := t.open(t.path)
	if err != nil {
		glog.V(1).Infof("TPM at %s not available: %v", t.path, err)
		return fmt.Errorf("%w: opening %s: %v", ErrTierUnavailable, t.path, err)
	}
	defer rwc.Close()

	srk, err := tpmclient.StorageRootKeyECC(rwc)
	if err != nil {
		return fmt.Errorf("%w: loading storage root key: %v", ErrTierUnavailable, err)
	}
	defer srk.Close()
	return fn(srk)
}

func sealedKey(key string) string { return key + ".tpm" }

// Get implements Tier.
func (t *TPMTier) Get(key string) ([]byte, error) {
	blob, err := t.backing.Get(sealedKey(key))
	if err != nil {
		return nil, err
	}
	sealed := &tpmpb.SealedBytes{}
	if err := proto.Unmarshal(blob, sealed); err != nil {
		return nil, fmt.Errorf("parsing sealed blob: %v", err)
	}
	var out []byte
	err = t.withSRK(func(srk *tpmclient.Key) error {
		var err error
		out, err = srk.Unseal(sealed, tpmclient.UnsealOpts{})
		if err != nil {
			return fmt.Errorf("unsealing %s: %v", key, err)
		}
		return nil
	})
	return out, err
}

// Put implements Tier.
func (t *TPMTier) Put(key string, value []byte) error {
	var sealed *tpmpb.SealedBytes
	if err := t.withSRK(func(srk *tpmclient.Key) error {
		var err error
		sealed, err = srk.Seal(value, tpmclient.SealOpts{})
		if err != nil {
			return fmt.Errorf("sealing %s: %v", key, err)
		}
		return nil
	}); err != nil {
		return err
	}
	blob, err := proto.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("error marshalling sealed blob: %v", err)
	}
	return t.backing.Put(sealedKey(key), blob)
}

// Delete implements Tier.
func (t *TPMTier) Delete(key string) error {
	return t.backing.Delete(sealedKey(key))
}
