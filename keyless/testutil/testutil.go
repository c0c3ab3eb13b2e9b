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

// Package testutil contains utilities for unit tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/GoogleCloudPlatform/keyless/keyless"
	"github.com/GoogleCloudPlatform/keyless/keyless/transport"
)

// CloudProvider is the cloud key provider used by test wallets.
const CloudProvider = "google-drive"

// UserInfo is the owner of test wallets.
var UserInfo = keyless.UserInfo{
	AccountEmail:      "user@example.com",
	AccountUserID:     "account-7f3a",
	CloudKeyProvider:  CloudProvider,
	CloudKeyUserID:    "drive-user-1138",
	CloudKeyUserEmail: "user@example.com",
}

// NewWallet generates a fresh wallet and its pack triple.
func NewWallet(t testing.TB) (*keyless.MnemonicInfo, *keyless.Packs) {
	t.Helper()
	info, err := keyless.GenerateMnemonicInfo()
	if err != nil {
		t.Fatalf("GenerateMnemonicInfo() failed: %v", err)
	}
	packs, err := keyless.GeneratePacks(UserInfo, info, keyless.NewPackSetID())
	if err != nil {
		t.Fatalf("GeneratePacks() failed: %v", err)
	}
	return info, packs
}

type record struct {
	packSetID string
	payload   []byte
}

// MemoryTransport is an in-memory transport.Transport.
type MemoryTransport struct {
	mu      sync.Mutex
	records map[string]record
	nextID  int

	// CorruptDownloads, if set, is applied to every downloaded payload.
	CorruptDownloads func([]byte) []byte
	// Deleted lists the record ids passed to Delete.
	Deleted []string
}

var _ transport.Transport = (*MemoryTransport)(nil)

// NewMemoryTransport returns an empty MemoryTransport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{records: map[string]record{}}
}

// Upload implements transport.Transport.
func (m *MemoryTransport) Upload(_ context.Context, packSetID string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.packSetID == packSetID {
			m.records[id] = record{packSetID: packSetID, payload: append([]byte(nil), payload...)}
			return id, nil
		}
	}
	m.nextID++
	id := fmt.Sprintf("record-%d", m.nextID)
	m.records[id] = record{packSetID: packSetID, payload: append([]byte(nil), payload...)}
	return id, nil
}

// Download implements transport.Transport.
func (m *MemoryTransport) Download(_ context.Context, recordID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[recordID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, recordID)
	}
	out := append([]byte(nil), r.payload...)
	if m.CorruptDownloads != nil {
		out = m.CorruptDownloads(out)
	}
	return out, nil
}

// Lookup implements transport.Transport.
func (m *MemoryTransport) Lookup(_ context.Context, packSetID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.records {
		if r.packSetID == packSetID {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: pack set %s", transport.ErrNotFound, packSetID)
}

// Delete implements transport.Transport.
func (m *MemoryTransport) Delete(_ context.Context, recordID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, recordID)
	m.Deleted = append(m.Deleted, recordID)
	return nil
}

// Put stores payload under packSetID, bypassing any checks.
func (m *MemoryTransport) Put(packSetID string, payload []byte) string {
	id, _ := m.Upload(context.Background(), packSetID, payload)
	return id
}

// Len returns the number of stored records.
func (m *MemoryTransport) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// FakePrompter returns a fixed auth pack and counts how often it was asked.
type FakePrompter struct {
	Pack *keyless.AuthKeyPack
	// Err, if set, is returned instead of Pack.
	Err error

	mu    sync.Mutex
	calls int
}

// PromptAuthPack returns Pack, Err, or transport.ErrNotFound when neither is set.
func (p *FakePrompter) PromptAuthPack(_ context.Context, packSetID string) (*keyless.AuthKeyPack, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Pack == nil {
		return nil, fmt.Errorf("%w: auth pack %s", transport.ErrNotFound, packSetID)
	}
	return p.Pack, nil
}

// Calls returns the number of PromptAuthPack calls.
func (p *FakePrompter) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
