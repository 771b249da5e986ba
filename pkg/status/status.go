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

// Package status turns outcomes and failures into operator-facing status
// lines. Every failure in the tool ends here: it is mapped to one of the error
// categories and a message, and the tool stays usable for a retry.
package status

import (
	"context"
	"net/http"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/copyedit/pkg/ledger"
	"github.com/walteh/copyedit/pkg/overlay"
	"github.com/walteh/copyedit/pkg/preview"
	"github.com/walteh/copyedit/pkg/reconcile"
	"github.com/walteh/copyedit/pkg/records"
	"github.com/walteh/copyedit/pkg/remote/github"
)

// 📊 Kind is the category of a status line
type Kind string

const (
	KindOK       Kind = "ok"
	KindProgress Kind = "progress"
	// KindUserInput is a missing or malformed operator input, caught before
	// any network call
	KindUserInput Kind = "user_input"
	// KindNetwork is a fetch failure, a non-2xx response or rejected credentials
	KindNetwork Kind = "network_auth"
	// KindAmbiguity is an edit that matched no source text
	KindAmbiguity Kind = "ambiguity"
	// KindCorrupted is unreadable local state
	KindCorrupted Kind = "corrupted_state"
	// KindEnvironment is a limitation of the hosting browser or a stale preview
	KindEnvironment Kind = "environment"
)

// Tone is the presentation hint for a status line
type Tone string

const (
	ToneNeutral Tone = ""
	ToneGood    Tone = "is-good"
	ToneBad     Tone = "is-bad"
)

// 📝 Status is one operator-facing status line
type Status struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Tone    Tone   `json:"tone"`
}

// Good is a successful outcome
func Good(msg string) Status {
	return Status{Kind: KindOK, Message: msg, Tone: ToneGood}
}

// Info is a neutral outcome
func Info(msg string) Status {
	return Status{Kind: KindOK, Message: msg, Tone: ToneNeutral}
}

// Progress is an in-flight step
func Progress(msg string) Status {
	return Status{Kind: KindProgress, Message: msg, Tone: ToneNeutral}
}

// Bad is a failure of the given kind
func Bad(kind Kind, msg string) Status {
	return Status{Kind: kind, Message: msg, Tone: ToneBad}
}

// Failed reports whether the status is a failure
func (s Status) Failed() bool {
	return s.Tone == ToneBad
}

// String renders the status the way the status bar shows it
func (s Status) String() string {
	return "Status: " + s.Message
}

// 🏷️ Error is an error that already knows its category and message
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NewUserError creates a user-input error sentinel
func NewUserError(msg string) *Error {
	return &Error{Kind: KindUserInput, Message: msg}
}

type mapping struct {
	target  error
	kind    Kind
	message string
	code    int
}

var mappings = []mapping{
	{preview.ErrInvalidURL, KindUserInput, "Enter a valid site URL.", http.StatusBadRequest},
	{github.ErrInvalidRepoURL, KindUserInput, "Enter a valid GitHub repo URL.", http.StatusBadRequest},
	{github.ErrBadCredentials, KindNetwork, github.ErrBadCredentials.Error(), http.StatusUnauthorized},
	{github.ErrRateLimited, KindNetwork, "GitHub rate limit exceeded. Try again later.", http.StatusTooManyRequests},
	{github.ErrNotFound, KindNetwork, "Not found on GitHub. Check the repository and branch.", http.StatusBadGateway},
	{reconcile.ErrUnmatchedEdits, KindAmbiguity, "Some edits did not match source text. Check the list.", http.StatusConflict},
	{reconcile.ErrPushInProgress, KindUserInput, "A push is already in progress.", http.StatusConflict},
	{ledger.ErrCorruptDraft, KindCorrupted, "Saved draft is corrupted.", http.StatusUnprocessableEntity},
	{overlay.ErrStaleSession, KindEnvironment, "The preview changed. Reload it and try again.", http.StatusConflict},
	{overlay.ErrUnknownUnit, KindEnvironment, "Unknown text element. Reload the preview.", http.StatusConflict},
	{records.ErrInvalidTransition, KindUserInput, "That status change is not allowed.", http.StatusBadRequest},
	{records.ErrNotConfigured, KindUserInput, "Connect the records backend first.", http.StatusBadRequest},
	{records.ErrIncompleteMember, KindUserInput, "Please fill out all fields.", http.StatusBadRequest},
	{records.ErrNotFound, KindUserInput, "Record not found.", http.StatusNotFound},
	{context.DeadlineExceeded, KindNetwork, "The request timed out.", http.StatusGatewayTimeout},
	{context.Canceled, KindNetwork, "The request was cancelled.", http.StatusServiceUnavailable},
}

// FromError maps a failure to its status line. Unknown errors are treated as
// network failures and keep their own message.
func FromError(err error) Status {
	s, _ := Classify(err)
	return s
}

// Classify maps a failure to its status line and an HTTP status code
func Classify(err error) (Status, int) {
	if err == nil {
		return Good("OK"), http.StatusOK
	}

	var se *Error
	if errors.As(err, &se) {
		return Bad(se.Kind, se.Message), codeFor(se.Kind)
	}

	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return Bad(m.kind, m.message), m.code
		}
	}
	return Bad(KindNetwork, err.Error()), http.StatusBadGateway
}

func codeFor(k Kind) int {
	switch k {
	case KindUserInput:
		return http.StatusBadRequest
	case KindAmbiguity, KindEnvironment:
		return http.StatusConflict
	case KindCorrupted:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}
