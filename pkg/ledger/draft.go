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

package ledger

import (
	"bytes"
	"encoding/json"
	"time"

	"gitlab.com/tozd/go/errors"
)

// ErrCorruptDraft is returned when a draft blob cannot be decoded
var ErrCorruptDraft = errors.New("saved draft is corrupted")

// 💾 Draft is the durable form of a ledger
type Draft struct {
	Entries [][2]string `json:"entries"`
	SavedAt time.Time   `json:"savedAt"`
}

// Serialize encodes the ledger as a timestamped draft blob
func (l *Ledger) Serialize(now time.Time) ([]byte, error) {
	entries := l.Entries()
	d := Draft{
		Entries: make([][2]string, 0, len(entries)),
		SavedAt: now.UTC(),
	}
	for _, e := range entries {
		d.Entries = append(d.Entries, [2]string{e.Original, e.Updated})
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, errors.Errorf("encoding draft: %w", err)
	}
	return data, nil
}

// DecodeDraft parses a draft blob without touching any ledger
func DecodeDraft(data []byte) (*Draft, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.Errorf("%w: empty blob", ErrCorruptDraft)
	}

	var raw struct {
		Entries []json.RawMessage `json:"entries"`
		SavedAt time.Time         `json:"savedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Errorf("%w: %v", ErrCorruptDraft, err)
	}

	d := &Draft{SavedAt: raw.SavedAt, Entries: make([][2]string, 0, len(raw.Entries))}
	for i, msg := range raw.Entries {
		var pair []string
		if err := json.Unmarshal(msg, &pair); err != nil || len(pair) != 2 {
			return nil, errors.Errorf("%w: malformed entry %d", ErrCorruptDraft, i)
		}
		d.Entries = append(d.Entries, [2]string{pair[0], pair[1]})
	}
	return d, nil
}

// Restore replaces the ledger content with a decoded draft blob. On a
// corrupted blob the ledger is left untouched and ErrCorruptDraft is returned.
func (l *Ledger) Restore(data []byte) (*Draft, error) {
	d, err := DecodeDraft(data)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(d.Entries))
	for _, pair := range d.Entries {
		entries = append(entries, Entry{Original: pair[0], Updated: pair[1]})
	}
	l.replace(entries)
	return d, nil
}
