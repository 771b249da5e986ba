// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/status"
)

// maxBodyBytes bounds every JSON request body
const maxBodyBytes = 1 << 20

// ErrBadRequest is returned for a request body that is not the expected JSON
var ErrBadRequest = status.NewUserError("Request body is not valid JSON.")

// respond writes {"status": st, ...fields} with code
func respond(w http.ResponseWriter, code int, st status.Status, fields map[string]any) {
	body := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["status"] = st

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// fail writes err as a status response. st overrides the status derived
// from err when the caller already published a more specific one.
func fail(w http.ResponseWriter, r *http.Request, err error, st *status.Status) {
	derived, code := status.Classify(err)
	if st == nil {
		st = &derived
	}
	ev := zerolog.Ctx(r.Context()).Debug()
	if code >= http.StatusInternalServerError {
		ev = zerolog.Ctx(r.Context()).Warn()
	}
	ev.Err(err).Int("code", code).Msg(st.Message)
	respond(w, code, *st, nil)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errors.Errorf("%w: %s", ErrBadRequest, err.Error())
	}
	return nil
}

// hostOrigin is the origin the shell was served from
func hostOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
