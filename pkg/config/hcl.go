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

package config

import (
	"context"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".hcl")
}

// hclConfig is the HCL schema; every block is optional
type hclConfig struct {
	Site *struct {
		URL       string `hcl:"url,optional"`
		PublicURL string `hcl:"public_url,optional"`
	} `hcl:"site,block"`
	Repository *struct {
		URL       string `hcl:"url,optional"`
		Branch    string `hcl:"branch,optional"`
		TokenEnv  string `hcl:"token_env,optional"`
		AccessKey string `hcl:"access_key,optional"`
	} `hcl:"repository,block"`
	Commit *struct {
		Message string   `hcl:"message,optional"`
		Mode    string   `hcl:"mode,optional"`
		Files   []string `hcl:"files,optional"`
	} `hcl:"commit,block"`
	Server *struct {
		Addr string `hcl:"addr,optional"`
	} `hcl:"server,block"`
	Draft *struct {
		Backend string `hcl:"backend,optional"`
		Path    string `hcl:"path,optional"`
	} `hcl:"draft,block"`
	Records *struct {
		URL    string `hcl:"url,optional"`
		KeyEnv string `hcl:"key_env,optional"`
	} `hcl:"records,block"`
	Preview *struct {
		Timeout  string `hcl:"timeout,optional"`
		MaxBytes int64  `hcl:"max_bytes,optional"`
	} `hcl:"preview,block"`
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, "config.hcl")
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// env("NAME") style lookups are exposed as an env object
	envVars := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			envVars[k] = cty.StringVal(v)
		}
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(envVars),
		},
	}
	if len(envVars) == 0 {
		evalCtx.Variables["env"] = cty.EmptyObjectVal
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{}
	if s := hclCfg.Site; s != nil {
		cfg.Site = SiteArgs{URL: s.URL, PublicURL: s.PublicURL}
	}
	if r := hclCfg.Repository; r != nil {
		cfg.Repository = RepositoryArgs{URL: r.URL, Branch: r.Branch, TokenEnv: r.TokenEnv, AccessKey: r.AccessKey}
	}
	if c := hclCfg.Commit; c != nil {
		cfg.Commit = CommitArgs{Message: c.Message, Mode: c.Mode, Files: c.Files}
	}
	if s := hclCfg.Server; s != nil {
		cfg.Server = ServerArgs{Addr: s.Addr}
	}
	if d := hclCfg.Draft; d != nil {
		cfg.Draft = DraftArgs{Backend: d.Backend, Path: d.Path}
	}
	if r := hclCfg.Records; r != nil {
		cfg.Records = RecordsArgs{URL: r.URL, KeyEnv: r.KeyEnv}
	}
	if pv := hclCfg.Preview; pv != nil {
		cfg.Preview = PreviewArgs{Timeout: pv.Timeout, MaxBytes: pv.MaxBytes}
	}

	return cfg, nil
}
