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

package overlay

import (
	"sync"
	"time"
)

const (
	// DefaultResyncWindow is the quiet period before a resync is flushed
	DefaultResyncWindow = 150 * time.Millisecond
	// DefaultResyncMaxBuffer flushes immediately once this many units wait
	DefaultResyncMaxBuffer = 500
)

// ⏱️ Debouncer batches unit reports from a mutating page into one resync.
// Each Add restarts the window; the batch is flushed when the window passes
// quietly or when MaxBuffer units are waiting.
type Debouncer struct {
	mu        sync.Mutex
	window    time.Duration
	maxBuffer int
	pending   []Unit
	timer     *time.Timer
	flush     func([]Unit)
	stopped   bool
}

// 🏭 NewDebouncer creates a debouncer calling flush with each batch
func NewDebouncer(window time.Duration, maxBuffer int, flush func([]Unit)) *Debouncer {
	if window <= 0 {
		window = DefaultResyncWindow
	}
	if maxBuffer <= 0 {
		maxBuffer = DefaultResyncMaxBuffer
	}
	return &Debouncer{
		window:    window,
		maxBuffer: maxBuffer,
		flush:     flush,
	}
}

// Add queues units for the next flush
func (d *Debouncer) Add(units ...Unit) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = append(d.pending, units...)

	if len(d.pending) >= d.maxBuffer {
		batch := d.takeLocked()
		d.mu.Unlock()
		d.flush(batch)
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
	d.mu.Unlock()
}

// Flush emits anything pending right away
func (d *Debouncer) Flush() {
	d.mu.Lock()
	batch := d.takeLocked()
	d.mu.Unlock()
	if len(batch) > 0 {
		d.flush(batch)
	}
}

// Stop drops pending units and disables the debouncer
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	batch := d.takeLocked()
	d.mu.Unlock()
	if len(batch) > 0 {
		d.flush(batch)
	}
}

func (d *Debouncer) takeLocked() []Unit {
	batch := d.pending
	d.pending = nil
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	return batch
}
