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

package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/GoogleCloudPlatform/keyless/keyless"
	glog "github.com/golang/glog"
)

// ErrBackupMismatch is returned when a cloud backup reads back differently
// from what was uploaded.
var ErrBackupMismatch = errors.New("transport: uploaded backup does not match")

// BackupCloudPack uploads pack, downloads it again and compares. On mismatch
// the uploaded record is deleted.
func BackupCloudPack(ctx context.Context, t Transport, pack *keyless.CloudKeyPack) (string, error) {
	if err := keyless.ValidatePackSetID(pack.PackSetID); err != nil {
		return "", err
	}
	payload, err := keyless.MarshalPack(pack)
	if err != nil {
		return "", fmt.Errorf("serializing cloud pack: %v", err)
	}
	recordID, err := t.Upload(ctx, pack.PackSetID, payload)
	if err != nil {
		return "", fmt.Errorf("uploading cloud pack: %w", err)
	}
	got, err := t.Download(ctx, recordID)
	if err != nil {
		return "", fmt.Errorf("verifying cloud pack %s: %w", recordID, err)
	}
	if !bytes.Equal(got, payload) {
		if err := t.Delete(ctx, recordID); err != nil {
			glog.Warningf("Failed to delete mismatched cloud backup %s: %v", recordID, err)
		}
		return "", fmt.Errorf("%w: record %s", ErrBackupMismatch, recordID)
	}
	glog.Infof("Backed up cloud pack for pack set %s as record %s", pack.PackSetID, recordID)
	return recordID, nil
}

// FetchCloudPack looks up and downloads the cloud pack of packSetID.
func FetchCloudPack(ctx context.Context, t Transport, packSetID string) (*keyless.CloudKeyPack, error) {
	if err := keyless.ValidatePackSetID(packSetID); err != nil {
		return nil, err
	}
	recordID, err := t.Lookup(ctx, packSetID)
	if err != nil {
		return nil, fmt.Errorf("looking up cloud pack: %w", err)
	}
	payload, err := t.Download(ctx, recordID)
	if err != nil {
		return nil, fmt.Errorf("downloading cloud pack %s: %w", recordID, err)
	}
	pack, err := keyless.UnmarshalCloudKeyPack(payload)
	if err != nil {
		return nil, err
	}
	if pack.PackSetID != packSetID {
		return nil, fmt.Errorf("%w: record %s holds pack set %s", keyless.ErrPackSetMismatch, recordID, pack.PackSetID)
	}
	return pack, nil
}
