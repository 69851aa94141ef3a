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

package drive

import (
	"errors"
	"net/http"
	"time"
)

// transport sets the browser user agent on requests that lack one. Requests
// are sent once; a failed listing or download fails the item.
type transport struct {
	base      http.RoundTripper
	userAgent string
}

func newTransport(base http.RoundTripper, userAgent string) *transport {
	if t, ok := base.(*transport); ok {
		base = t.base
	}
	if base == nil {
		base = http.DefaultTransport
	}
	return &transport{base: base, userAgent: userAgent}
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(r)
}

// withHeaderTimeout returns base with ResponseHeaderTimeout set to d. Round
// trippers other than *http.Transport are returned unchanged.
func withHeaderTimeout(base http.RoundTripper, d time.Duration) http.RoundTripper {
	if d <= 0 {
		return base
	}
	if t, ok := base.(*transport); ok {
		base = t.base
	}
	if base == nil {
		base = http.DefaultTransport
	}
	ht, ok := base.(*http.Transport)
	if !ok {
		return base
	}
	ht = ht.Clone()
	ht.ResponseHeaderTimeout = d
	return ht
}
