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

package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/GoogleCloudPlatform/keyless/keyless"
	"github.com/GoogleCloudPlatform/keyless/keyless/transport"
	"github.com/google/go-cmp/cmp"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type fakeFile struct {
	meta drivev3.File
	data []byte
}

// fakeDrive implements the subset of the Drive v3 REST surface used by Transport.
type fakeDrive struct {
	t      *testing.T
	mu     sync.Mutex
	files    map[string]*fakeFile
	nextID   int
	requests int
}

var queryValue = regexp.MustCompile(`value='([^']*)'`)

func (d *fakeDrive) notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, `{"error":{"code":404,"message":"File not found"}}`)
}

func (d *fakeDrive) readMultipart(r *http.Request) (drivev3.File, []byte) {
	d.t.Helper()
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		d.t.Fatalf("unexpected upload content type %q: %v", r.Header.Get("Content-Type"), err)
	}
	mr := multipart.NewReader(r.Body, params["boundary"])

	var meta drivev3.File
	part, err := mr.NextPart()
	if err != nil {
		d.t.Fatalf("reading metadata part: %v", err)
	}
	if err := json.NewDecoder(part).Decode(&meta); err != nil {
		d.t.Fatalf("decoding metadata part: %v", err)
	}
	part, err = mr.NextPart()
	if err != nil {
		d.t.Fatalf("reading media part: %v", err)
	}
	data, err := io.ReadAll(part)
	if err != nil {
		d.t.Fatalf("reading media: %v", err)
	}
	return meta, data
}

func (d *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests++

	// Media uploads may or may not be routed under /upload.
	path := strings.TrimPrefix(r.URL.Path, "/upload")

	switch {
	case r.Method == http.MethodPost && path == "/drive/v3/files":
		meta, data := d.readMultipart(r)
		d.nextID++
		meta.Id = fmt.Sprintf("file-%d", d.nextID)
		d.files[meta.Id] = &fakeFile{meta: meta, data: data}
		json.NewEncoder(w).Encode(&drivev3.File{Id: meta.Id})

	case r.Method == http.MethodPatch && strings.HasPrefix(path, "/drive/v3/files/"):
		id := strings.TrimPrefix(path, "/drive/v3/files/")
		f, ok := d.files[id]
		if !ok {
			d.notFound(w)
			return
		}
		_, f.data = d.readMultipart(r)
		json.NewEncoder(w).Encode(&drivev3.File{Id: id})

	case r.Method == http.MethodGet && r.URL.Path == "/drive/v3/files":
		if got := r.URL.Query().Get("spaces"); got != AppDataFolder {
			d.t.Errorf("List spaces = %q, want %q", got, AppDataFolder)
		}
		list := &drivev3.FileList{}
		m := queryValue.FindStringSubmatch(r.URL.Query().Get("q"))
		for id, f := range d.files {
			if m != nil && f.meta.AppProperties[packSetIDProperty] == m[1] {
				list.Files = append(list.Files, &drivev3.File{Id: id})
			}
		}
		json.NewEncoder(w).Encode(list)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/drive/v3/files/"):
		f, ok := d.files[strings.TrimPrefix(r.URL.Path, "/drive/v3/files/")]
		if !ok {
			d.notFound(w)
			return
		}
		if r.URL.Query().Get("alt") != "media" {
			d.t.Errorf("Get without alt=media: %s", r.URL)
		}
		w.Write(f.data)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/drive/v3/files/"):
		id := strings.TrimPrefix(r.URL.Path, "/drive/v3/files/")
		if _, ok := d.files[id]; !ok {
			d.notFound(w)
			return
		}
		delete(d.files, id)
		w.WriteHeader(http.StatusNoContent)

	default:
		d.t.Errorf("unexpected request %s %s", r.Method, r.URL)
		http.Error(w, "unexpected request", http.StatusBadRequest)
	}
}

func newTestTransport(t *testing.T) (*Transport, *fakeDrive) {
	t.Helper()
	fake := &fakeDrive{t: t, files: map[string]*fakeFile{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	tr, err := New(context.Background(), Options{
		Version: "test",
		ClientOptions: []option.ClientOption{
			option.WithEndpoint(srv.URL + "/drive/v3/"),
			option.WithoutAuthentication(),
			option.WithHTTPClient(srv.Client()),
		},
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return tr, fake
}

const testPackSetID = "0123456789abcdef0123456789abcdef"

func TestUploadDownloadLookup(t *testing.T) {
	ctx := context.Background()
	tr, fake := newTestTransport(t)

	payload := []byte(`{"packSetID":"` + testPackSetID + `"}`)
	id, err := tr.Upload(ctx, testPackSetID, payload)
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}

	f := fake.files[id]
	if f == nil {
		t.Fatalf("Upload() returned %q, which the server does not know", id)
	}
	if diff := cmp.Diff([]string{AppDataFolder}, f.meta.Parents); diff != "" {
		t.Errorf("uploaded parents mismatch (-want +got):\n%s", diff)
	}
	if got := f.meta.AppProperties[packSetIDProperty]; got != testPackSetID {
		t.Errorf("uploaded appProperties[%s] = %q, want %q", packSetIDProperty, got, testPackSetID)
	}

	found, err := tr.Lookup(ctx, testPackSetID)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if found != id {
		t.Errorf("Lookup() = %q, want %q", found, id)
	}

	got, err := tr.Download(ctx, id)
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	if diff := cmp.Diff(payload, got); diff != "" {
		t.Errorf("Download() mismatch (-want +got):\n%s", diff)
	}
}

func TestUploadOverwritesExistingRecord(t *testing.T) {
	ctx := context.Background()
	tr, fake := newTestTransport(t)

	first, err := tr.Upload(ctx, testPackSetID, []byte("first"))
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	second, err := tr.Upload(ctx, testPackSetID, []byte("second"))
	if err != nil {
		t.Fatalf("second Upload() failed: %v", err)
	}
	if first != second {
		t.Errorf("second Upload() created record %q, want update of %q", second, first)
	}
	if len(fake.files) != 1 {
		t.Errorf("server holds %d records, want 1", len(fake.files))
	}

	got, err := tr.Download(ctx, first)
	if err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("Download() = %q, want %q", got, "second")
	}
}

func TestNotFound(t *testing.T) {
	ctx := context.Background()
	tr, _ := newTestTransport(t)

	if _, err := tr.Lookup(ctx, testPackSetID); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("Lookup() of unknown pack set = %v, want %v", err, transport.ErrNotFound)
	}
	if _, err := tr.Download(ctx, "missing"); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("Download() of unknown record = %v, want %v", err, transport.ErrNotFound)
	}
	if err := tr.Delete(ctx, "missing"); err != nil {
		t.Errorf("Delete() of unknown record = %v, want nil", err)
	}
}

func TestInvalidPackSetIDNeverReachesDrive(t *testing.T) {
	ctx := context.Background()
	tr, fake := newTestTransport(t)

	for _, id := range []string{
		"",
		"ABC",
		"x' } or appProperties has { key='packSetId",
		testPackSetID + "' or trashed = true or name contains '",
	} {
		if _, err := tr.Lookup(ctx, id); !errors.Is(err, keyless.ErrInvalidPackSetID) {
			t.Errorf("Lookup(%q) err = %v, want %v", id, err, keyless.ErrInvalidPackSetID)
		}
		if _, err := tr.Upload(ctx, id, []byte("payload")); !errors.Is(err, keyless.ErrInvalidPackSetID) {
			t.Errorf("Upload(%q) err = %v, want %v", id, err, keyless.ErrInvalidPackSetID)
		}
	}
	if fake.requests != 0 {
		t.Errorf("server received %d requests, want 0", fake.requests)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	tr, fake := newTestTransport(t)

	id, err := tr.Upload(ctx, testPackSetID, []byte("payload"))
	if err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}
	if err := tr.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if len(fake.files) != 0 {
		t.Errorf("server holds %d records after Delete(), want 0", len(fake.files))
	}
	if _, err := tr.Lookup(ctx, testPackSetID); !errors.Is(err, transport.ErrNotFound) {
		t.Errorf("Lookup() after Delete() = %v, want %v", err, transport.ErrNotFound)
	}
}
