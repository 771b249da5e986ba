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

// Package config loads the copyedit configuration file.
//
// 📚 Formats
//
// The format is chosen by file extension through a parser registry:
//
//	.yaml, .yml  YAML (unknown fields rejected)
//	.json        JSON (unknown fields rejected)
//	.hcl         HCL
//
// 🔧 Example (.copyedit.yaml)
//
//	site:
//	  url: https://www.example.com/
//	repository:
//	  url: https://github.com/acme/site
//	  branch: master
//	commit:
//	  mode: all
//	  files:
//	    - siteData.js
//	    - src/data/**/*.js
//	draft:
//	  backend: sqlite
//	  path: .copyedit/drafts.db
//
// Every field is optional. Validate fills the defaults, so a missing file
// behaves like an empty one.
package config
