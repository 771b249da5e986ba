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

// Package draft keeps the operator's local durable state: the saved ledger
// draft and the last connection settings. Two backends exist, a JSON file and
// an SQLite database.
package draft

import (
	"context"
	"encoding/json"

	"gitlab.com/tozd/go/errors"
)

// Keys
const (
	KeyDraft      = "editorDraft"
	KeyConnection = "editorConnection"
)

var ErrNotFound = errors.New("no saved value")

// 💾 Store holds opaque blobs by key
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// 🔌 Connection is the saved connection form. The token is never stored.
type Connection struct {
	RepoURL    string `json:"repoUrl"`
	Branch     string `json:"branch"`
	SiteURL    string `json:"siteUrl"`
	RecordsURL string `json:"recordsUrl,omitempty"`
}

// 🏭 Open opens the store for the configured backend
func Open(ctx context.Context, backend, path string) (Store, error) {
	switch backend {
	case "", "file":
		return NewFileStore(path), nil
	case "sqlite":
		return OpenSQLite(ctx, path)
	default:
		return nil, errors.Errorf("unknown draft backend %q", backend)
	}
}

// SaveConnection stores the connection settings
func SaveConnection(ctx context.Context, s Store, c Connection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return errors.Errorf("encoding connection: %w", err)
	}
	return s.Save(ctx, KeyConnection, data)
}

// LoadConnection reads the connection settings
func LoadConnection(ctx context.Context, s Store) (*Connection, error) {
	data, err := s.Load(ctx, KeyConnection)
	if err != nil {
		return nil, err
	}
	var c Connection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Errorf("decoding connection: %w", err)
	}
	return &c, nil
}
