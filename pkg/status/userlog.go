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

package status

import (
	"context"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
)

// 📢 UserLogger prints status lines for the terminal
type UserLogger struct {
	log zerolog.Logger
}

// 🎯 NewUserLogger creates a user logger tied to the context logger
func NewUserLogger(ctx context.Context) *UserLogger {
	return &UserLogger{
		log: *zerolog.Ctx(ctx),
	}
}

// LogStatus prints a status line with the printer matching its tone
func (u *UserLogger) LogStatus(s Status) {
	switch {
	case s.Failed():
		pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).Println(s.Message)
		u.log.Warn().Str("kind", string(s.Kind)).Msg(s.Message)
	case s.Tone == ToneGood:
		pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}).Println(s.Message)
		u.log.Info().Msg(s.Message)
	default:
		pterm.Info.WithPrefix(pterm.Prefix{Text: "📦"}).Println(s.Message)
		u.log.Info().Msg(s.Message)
	}
}

// LogError maps err to its status line and prints it
func (u *UserLogger) LogError(err error) Status {
	s := FromError(err)
	u.LogStatus(s)
	u.log.Debug().Err(err).Msg("operation failed")
	return s
}

// 🔍 LogValidation logs validation results
func (u *UserLogger) LogValidation(valid bool, description string, err error) {
	if valid {
		pterm.Success.WithPrefix(pterm.Prefix{Text: "✅"}).Println(description)
		u.log.Info().Msg(description)
		return
	}
	if err != nil {
		pterm.Error.WithPrefix(pterm.Prefix{Text: "❌"}).Println(description)
		pterm.Error.Println(err)
		u.log.Error().Err(err).Msg(description)
		return
	}
	pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).Println(description)
	u.log.Warn().Msg(description)
}

// LogUnmatched lists edits that matched no source text
func (u *UserLogger) LogUnmatched(originals []string) {
	for _, o := range originals {
		pterm.Warning.WithPrefix(pterm.Prefix{Text: "⚠️"}).Printfln("no match: %q", o)
	}
	if len(originals) > 0 {
		u.log.Warn().Strs("unmatched", originals).Msg("edits without source match")
	}
}
