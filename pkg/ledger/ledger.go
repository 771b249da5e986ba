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

// Package ledger holds the pending edits of an editing session.
//
// A ledger maps original text to replacement text. An entry exists only while
// the two differ: registering a change back to its original removes the entry.
// Iteration order is insertion order of the original keys, and it survives a
// serialize/restore round trip.
package ledger

import (
	"fmt"
	"sync"

	"github.com/walteh/copyedit/pkg/text"
)

// 📝 Entry is one pending edit
type Entry struct {
	Original string `json:"original"`
	Updated  string `json:"updated"`
}

// Listener is called after every mutation with the entry count
type Listener func(count int)

// 📚 Ledger is the single source of truth for what changed
type Ledger struct {
	mu        sync.RWMutex
	order     []string
	values    map[string]string
	listeners []Listener
}

// 🏭 New creates an empty ledger
func New() *Ledger {
	return &Ledger{
		values: make(map[string]string),
	}
}

// OnChange registers a listener for ledger mutations
func (l *Ledger) OnChange(fn Listener) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// RegisterChange records original -> updated. An empty original, or an
// updated value equal to the original, deletes any entry for original.
func (l *Ledger) RegisterChange(original, updated string) {
	l.mu.Lock()
	if original == "" || original == updated {
		l.deleteLocked(original)
	} else {
		if _, ok := l.values[original]; !ok {
			l.order = append(l.order, original)
		}
		l.values[original] = updated
	}
	count, listeners := len(l.order), l.listeners
	l.mu.Unlock()

	notify(listeners, count)
}

// Get returns the replacement for original
func (l *Ledger) Get(original string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.values[original]
	return v, ok
}

// Delete removes the entry for original, if any
func (l *Ledger) Delete(original string) {
	l.mu.Lock()
	l.deleteLocked(original)
	count, listeners := len(l.order), l.listeners
	l.mu.Unlock()

	notify(listeners, count)
}

// Clear removes every entry
func (l *Ledger) Clear() {
	l.mu.Lock()
	l.order = nil
	l.values = make(map[string]string)
	listeners := l.listeners
	l.mu.Unlock()

	notify(listeners, 0)
}

// Len returns the number of entries
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Entries returns a snapshot of the entries in insertion order
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, 0, len(l.order))
	for _, k := range l.order {
		out = append(out, Entry{Original: k, Updated: l.values[k]})
	}
	return out
}

// Rules converts the entries to replacement rules in ledger order
func (l *Ledger) Rules() []text.ReplacementRule {
	entries := l.Entries()
	rules := make([]text.ReplacementRule, 0, len(entries))
	for _, e := range entries {
		rules = append(rules, text.ReplacementRule{FromText: e.Original, ToText: e.Updated})
	}
	return rules
}

// Summary is the short badge text for the ledger
func (l *Ledger) Summary() string {
	n := l.Len()
	if n == 0 {
		return "No edits"
	}
	return fmt.Sprintf("%d edit(s)", n)
}

// replace swaps the whole content, used by Restore
func (l *Ledger) replace(entries []Entry) {
	l.mu.Lock()
	l.order = make([]string, 0, len(entries))
	l.values = make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Original == "" || e.Original == e.Updated {
			continue
		}
		if _, ok := l.values[e.Original]; !ok {
			l.order = append(l.order, e.Original)
		}
		l.values[e.Original] = e.Updated
	}
	count, listeners := len(l.order), l.listeners
	l.mu.Unlock()

	notify(listeners, count)
}

func (l *Ledger) deleteLocked(original string) {
	if _, ok := l.values[original]; !ok {
		return
	}
	delete(l.values, original)
	for i, k := range l.order {
		if k == original {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func notify(listeners []Listener, count int) {
	for _, fn := range listeners {
		fn(count)
	}
}
