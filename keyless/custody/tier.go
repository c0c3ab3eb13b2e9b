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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
)

// Tier is one class of local storage. Implementations are safe for
// concurrent use.
type Tier interface {
	// Name identifies the tier in logs.
	Name() string
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)
	// Put stores value under key, replacing any previous value. A tier that
	// cannot be used on this host returns ErrTierUnavailable.
	Put(key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}

// MemoryTier keeps values in process memory.
type MemoryTier struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryTier returns an empty MemoryTier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{values: map[string][]byte{}}
}

// Name implements Tier.
func (m *MemoryTier) Name() string { return "memory" }

// Get implements Tier.
func (m *MemoryTier) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put implements Tier.
func (m *MemoryTier) Put(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements Tier.
func (m *MemoryTier) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// FileTier stores one owner-only file per key in a directory.
type FileTier struct {
	dir string
	mu  sync.Mutex
}

// NewFileTier returns a FileTier rooted at dir, creating it if needed.
func NewFileTier(dir string) (*FileTier, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating state directory: %v", err)
	}
	return &FileTier{dir: dir}, nil
}

// Name implements Tier.
func (f *FileTier) Name() string { return "file" }

// Get implements Tier.
func (f *FileTier) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(filepath.Join(f.dir, key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v", key, err)
	}
	return b, nil
}

// Put implements Tier. The value is written to a temporary file and renamed
// into place so readers never see a partial write.
func (f *FileTier) Put(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	tmp, err := os.CreateTemp(f.dir, "."+key+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file: %v", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("setting permissions: %v", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %v", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %v", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %v", key, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.dir, key)); err != nil {
		return fmt.Errorf("renaming %s into place: %v", key, err)
	}
	return nil
}

// Delete implements Tier.
func (f *FileTier) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(filepath.Join(f.dir, key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %v", key, err)
	}
	return nil
}
