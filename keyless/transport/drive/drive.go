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

// Package drive stores cloud packs in the application data folder of the
// user's Google Drive.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/GoogleCloudPlatform/keyless/keyless"
	"github.com/GoogleCloudPlatform/keyless/keyless/transport"
	glog "github.com/golang/glog"
	"golang.org/x/oauth2"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// AppDataFolder is the hidden per-application Drive space.
	AppDataFolder = "appDataFolder"

	packSetIDProperty = "packSetId"
	fileMIMEType      = "application/json"
)

// Options configures a Drive transport.
type Options struct {
	// CredentialsFile is a service account or authorized user JSON file.
	CredentialsFile string
	// AccessToken is an OAuth2 access token with the drive.appdata scope.
	// It takes precedence over CredentialsFile.
	AccessToken string
	// Space is the Drive space to store records in. Defaults to AppDataFolder.
	Space string
	// Version is reported in the user agent.
	Version string
	// ClientOptions are appended to the options derived from the fields above.
	ClientOptions []option.ClientOption
}

// Transport implements transport.Transport on Google Drive.
type Transport struct {
	files *drivev3.FilesService
	space string
}

var _ transport.Transport = (*Transport)(nil)

// New creates a Drive transport.
func New(ctx context.Context, opts Options) (*Transport, error) {
	ua := "keyless/"
	if opts.Version != "" {
		ua += opts.Version
	} else {
		ua += "dev"
	}
	clientOpts := []option.ClientOption{option.WithUserAgent(ua), option.WithScopes(drivev3.DriveAppdataScope)}
	switch {
	case opts.AccessToken != "":
		clientOpts = append(clientOpts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.AccessToken})))
	case opts.CredentialsFile != "":
		clientOpts = append(clientOpts, option.WithCredentialsFile(opts.CredentialsFile))
	}
	clientOpts = append(clientOpts, opts.ClientOptions...)

	svc, err := drivev3.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("error creating Drive client: %v", err)
	}
	space := opts.Space
	if space == "" {
		space = AppDataFolder
	}
	return &Transport{files: svc.Files, space: space}, nil
}

func fileName(packSetID string) string {
	return "keyless-cloud-pack-" + packSetID + ".json"
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

// Upload implements transport.Transport. An existing record of the same
// pack set is overwritten in place.
func (t *Transport) Upload(ctx context.Context, packSetID string, payload []byte) (string, error) {
	existing, err := t.Lookup(ctx, packSetID)
	if err != nil && !errors.Is(err, transport.ErrNotFound) {
		return "", err
	}
	if err == nil {
		f, err := t.files.Update(existing, &drivev3.File{}).
			Media(bytes.NewReader(payload), googleapi.ContentType(fileMIMEType)).
			Fields("id").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("updating Drive file %s: %v", existing, err)
		}
		glog.V(1).Infof("Updated Drive record %s for pack set %s", f.Id, packSetID)
		return f.Id, nil
	}

	meta := &drivev3.File{
		Name:          fileName(packSetID),
		MimeType:      fileMIMEType,
		AppProperties: map[string]string{packSetIDProperty: packSetID},
	}
	if t.space == AppDataFolder {
		meta.Parents = []string{AppDataFolder}
	}
	f, err := t.files.Create(meta).
		Media(bytes.NewReader(payload), googleapi.ContentType(fileMIMEType)).
		Fields("id").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating Drive file: %v", err)
	}
	glog.V(1).Infof("Created Drive record %s for pack set %s", f.Id, packSetID)
	return f.Id, nil
}

// Download implements transport.Transport.
func (t *Transport) Download(ctx context.Context, recordID string) ([]byte, error) {
	resp, err := t.files.Get(recordID).Context(ctx).Download()
	if isNotFound(err) {
		return nil, fmt.Errorf("%w: %s", transport.ErrNotFound, recordID)
	}
	if err != nil {
		return nil, fmt.Errorf("downloading Drive file %s: %v", recordID, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading Drive file %s: %v", recordID, err)
	}
	return b, nil
}

// Lookup implements transport.Transport.
func (t *Transport) Lookup(ctx context.Context, packSetID string) (string, error) {
	// The id is spliced into the Drive query.
	if err := keyless.ValidatePackSetID(packSetID); err != nil {
		return "", err
	}
	q := fmt.Sprintf("appProperties has { key='%s' and value='%s' } and trashed = false", packSetIDProperty, packSetID)
	list, err := t.files.List().Spaces(t.space).Q(q).
		OrderBy("modifiedTime desc").PageSize(1).
		Fields("files(id)").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("listing Drive files: %v", err)
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("%w: pack set %s", transport.ErrNotFound, packSetID)
	}
	return list.Files[0].Id, nil
}

// Delete implements transport.Transport.
func (t *Transport) Delete(ctx context.Context, recordID string) error {
	if err := t.files.Delete(recordID).Context(ctx).Do(); err != nil && !isNotFound(err) {
		return fmt.Errorf("deleting Drive file %s: %v", recordID, err)
	}
	return nil
}
