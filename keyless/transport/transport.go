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

// Package transport moves serialized packs between this device and remote
// storage. Payloads are opaque to the transport.
package transport

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no record exists.
var ErrNotFound = errors.New("transport: record not found")

// Transport stores opaque pack payloads remotely, indexed by pack set id.
type Transport interface {
	// Upload stores payload for packSetID, replacing an earlier record of
	// the same pack set, and returns the record id.
	Upload(ctx context.Context, packSetID string, payload []byte) (string, error)
	// Download returns the payload of a record, or ErrNotFound.
	Download(ctx context.Context, recordID string) ([]byte, error)
	// Lookup returns the id of the newest record for packSetID, or ErrNotFound.
	Lookup(ctx context.Context, packSetID string) (string, error)
	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, recordID string) error
}
