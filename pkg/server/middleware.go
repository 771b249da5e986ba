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
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/walteh/copyedit/pkg/status"
)

// MessageCrossSite is the status for a rejected cross-site request
const MessageCrossSite = "Request from another site rejected."

// RequestLogger attaches a request scoped logger to the context and logs each
// request once it completes. The wrapped writer keeps Hijacker support, which
// the overlay websocket needs.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			l := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			r = r.WithContext(l.WithContext(r.Context()))

			next.ServeHTTP(ww, r)

			code := ww.Status()
			if code == 0 {
				code = http.StatusOK
			}
			ev := l.Info()
			if code >= http.StatusInternalServerError {
				ev = l.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", code).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

// SameOrigin rejects state-changing requests sent by another site. A request
// whose Origin names a different host is refused, and so is one without
// Origin that the browser marks as cross-site. Reads pass through; the
// overlay websocket checks its origin on upgrade.
func SameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if !sameHost(r) || r.Header.Get("Sec-Fetch-Site") == "cross-site" {
			zerolog.Ctx(r.Context()).Warn().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("origin", r.Header.Get("Origin")).
				Msg("rejected cross-site request")
			respond(w, http.StatusForbidden, status.Bad(status.KindUserInput, MessageCrossSite), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
