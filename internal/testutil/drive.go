// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// Confirmation styles the fake Drive server can require.
const (
	ConfirmNone   = iota
	ConfirmCookie // download_warning cookie, then &confirm=
	ConfirmForm   // HTML page with form#download-form
)

// FakeFile is one file served by FakeDrive.
type FakeFile struct {
	ID      string
	Name    string // Sent in Content-Disposition and the listing.
	Data    []byte
	Confirm int
	Status  int // Forced status of the download, 0 for 200.
}

// FakeDrive mimics the public folder listing and download endpoints.
type FakeDrive struct {
	Server   *httptest.Server
	FolderID string

	mu       sync.Mutex
	files    []*FakeFile
	requests []string
}

// NewFakeDrive starts a server listing files under folderID.
func NewFakeDrive(folderID string, files ...*FakeFile) *FakeDrive {
	d := &FakeDrive{FolderID: folderID, files: files}
	mux := http.NewServeMux()
	mux.HandleFunc("/drive/folders/", d.handleFolder)
	mux.HandleFunc("/uc", d.handleDownload)
	mux.HandleFunc("/uc/confirmed", d.handleConfirmed)
	d.Server = httptest.NewServer(mux)
	return d
}

// Close stops the server.
func (d *FakeDrive) Close() { d.Server.Close() }

// URL is the base URL to configure the Drive client with.
func (d *FakeDrive) URL() string { return d.Server.URL }

// FolderURL is the share link of the folder.
func (d *FakeDrive) FolderURL() string {
	return d.Server.URL + "/drive/folders/" + d.FolderID + "?usp=sharing"
}

// Requests returns the request URIs seen so far.
func (d *FakeDrive) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}

func (d *FakeDrive) record(r *http.Request) {
	d.mu.Lock()
	d.requests = append(d.requests, r.URL.RequestURI())
	d.mu.Unlock()
}

func (d *FakeDrive) find(id string) *FakeFile {
	for _, f := range d.files {
		if f.ID == id {
			return f
		}
	}
	return nil
}

// ListingHTML renders a page shaped like the Drive folder view: every file
// appears twice, once in a labelled row and once in a script blob.
func ListingHTML(files ...*FakeFile) string {
	var rows, blob strings.Builder
	for _, f := range files {
		fmt.Fprintf(&rows, `<div class="row" data-id="%s" aria-label="%s"><a href="/file/d/%s/view">open</a></div>`+"\n", f.ID, f.Name, f.ID)
		fmt.Fprintf(&blob, `[\"/d/%s\",\"%s\"],`, f.ID, f.Name)
	}
	return "<html><head><title>Folder</title></head><body>\n" + rows.String() +
		"<script>window.viewerData = \"" + blob.String() + "\";</script>\n</body></html>"
}

func (d *FakeDrive) handleFolder(w http.ResponseWriter, r *http.Request) {
	d.record(r)
	if strings.TrimPrefix(r.URL.Path, "/drive/folders/") != d.FolderID {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, ListingHTML(d.files...))
}

func (d *FakeDrive) handleDownload(w http.ResponseWriter, r *http.Request) {
	d.record(r)
	f := d.find(r.URL.Query().Get("id"))
	if f == nil {
		http.NotFound(w, r)
		return
	}
	if f.Status != 0 && f.Status != http.StatusOK {
		http.Error(w, "denied", f.Status)
		return
	}
	switch f.Confirm {
	case ConfirmCookie:
		if r.URL.Query().Get("confirm") != "token-"+f.ID {
			http.SetCookie(w, &http.Cookie{Name: "download_warning_" + f.ID, Value: "token-" + f.ID})
			w.Header().Set("Content-Type", "text/html")
			_, _ = fmt.Fprint(w, "<html><body>Google Drive can't scan this file for viruses.</body></html>")
			return
		}
	case ConfirmForm:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprintf(w, `<html><body><form id="download-form" action="/uc/confirmed" method="get">`+
			`<input type="hidden" name="id" value="%s"><input type="hidden" name="confirm" value="t">`+
			`<input type="submit" value="Download anyway"></form></body></html>`, f.ID)
		return
	}
	d.serve(w, f)
}

func (d *FakeDrive) handleConfirmed(w http.ResponseWriter, r *http.Request) {
	d.record(r)
	f := d.find(r.URL.Query().Get("id"))
	if f == nil || r.URL.Query().Get("confirm") != "t" {
		http.NotFound(w, r)
		return
	}
	d.serve(w, f)
}

func (d *FakeDrive) serve(w http.ResponseWriter, f *FakeFile) {
	w.Header().Set("Content-Type", "application/octet-stream")
	if f.Name != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, f.Name))
	}
	_, _ = w.Write(f.Data)
}
