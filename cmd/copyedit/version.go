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

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// 📦 trackedDeps are the libraries whose versions are worth reporting when
// debugging a push or preview problem
var trackedDeps = []string{
	"github.com/google/go-github/v60",
	"github.com/gorilla/websocket",
	"modernc.org/sqlite",
}

// BuildInfo describes the running binary
type BuildInfo struct {
	Version  string            `json:"version"`
	Go       string            `json:"go"`
	Platform string            `json:"platform"`
	Commit   string            `json:"commit,omitempty"`
	Built    string            `json:"built,omitempty"`
	Dirty    bool              `json:"dirty"`
	Deps     map[string]string `json:"deps,omitempty"`
}

// ReadBuild collects BuildInfo from the embedded module data. read is
// debug.ReadBuildInfo outside of tests.
func ReadBuild(read func() (*debug.BuildInfo, bool)) BuildInfo {
	out := BuildInfo{
		Version:  "dev",
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
	}

	bi, ok := read()
	if !ok {
		return out
	}
	if v := bi.Main.Version; v != "" && v != "(devel)" {
		out.Version = v
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.Built = s.Value
		case "vcs.modified":
			out.Dirty = s.Value == "true"
		}
	}
	for _, d := range bi.Deps {
		for _, want := range trackedDeps {
			if d.Path != want {
				continue
			}
			if out.Deps == nil {
				out.Deps = map[string]string{}
			}
			out.Deps[d.Path] = d.Version
		}
	}
	return out
}

// String renders the human readable form printed by `copyedit version`
func (b BuildInfo) String() string {
	var sb strings.Builder
	sb.WriteString("🚀 copyedit version info:\n")
	fmt.Fprintf(&sb, "Version:   %s\n", b.Version)
	if b.Commit != "" {
		commit := b.Commit
		if b.Dirty {
			commit += " (modified)"
		}
		fmt.Fprintf(&sb, "Commit:    %s\n", commit)
	}
	if b.Built != "" {
		fmt.Fprintf(&sb, "Built:     %s\n", b.Built)
	}
	fmt.Fprintf(&sb, "Go:        %s\n", b.Go)
	fmt.Fprintf(&sb, "Platform:  %s\n", b.Platform)
	for _, path := range trackedDeps {
		if v, ok := b.Deps[path]; ok {
			fmt.Fprintf(&sb, "  %s %s\n", path, v)
		}
	}
	return sb.String()
}

func writeBuild(w io.Writer, b BuildInfo, asJSON bool) error {
	if !asJSON {
		_, err := io.WriteString(w, b.String())
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

func newVersionCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeBuild(cmd.OutOrStdout(), ReadBuild(debug.ReadBuildInfo), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print build information as JSON")
	return cmd
}
