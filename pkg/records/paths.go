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

package records

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SafeFileName replaces every character outside [a-zA-Z0-9._-] with a dash
func SafeFileName(name string) string {
	return unsafeFileChars.ReplaceAllString(name, "-")
}

// extension is the part after the last dot, or jpg
func extension(name string) string {
	safe := SafeFileName(name)
	if i := strings.LastIndex(safe, "."); i >= 0 {
		return safe[i+1:]
	}
	return "jpg"
}

// NewsImagePath is the storage path of a news slot image
func NewsImagePath(slot int, fileName string) string {
	return fmt.Sprintf("news/slot-%d.%s", slot, extension(fileName))
}

// ServiceImagePath is the storage path of a service slot image
func ServiceImagePath(serviceKey string, slot int, fileName string) string {
	return fmt.Sprintf("services/%s-slot-%d.%s", serviceKey, slot, extension(fileName))
}

// TeamImagePath is the storage path of a team member image
func TeamImagePath(now time.Time, fileName string) string {
	return fmt.Sprintf("team/%d-%s", now.UnixMilli(), SafeFileName(fileName))
}

// StoragePath recovers the object path from a public URL of the given
// bucket. It returns "" when the URL does not belong to the bucket.
func StoragePath(publicURL, bucket string) string {
	if publicURL == "" {
		return ""
	}
	marker := "/storage/v1/object/public/" + bucket + "/"
	i := strings.Index(publicURL, marker)
	if i < 0 {
		return ""
	}
	return publicURL[i+len(marker):]
}
