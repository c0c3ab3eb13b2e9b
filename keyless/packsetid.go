// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package keyless

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var packSetIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// NewPackSetID returns a random version 4 UUID with its dashes removed.
func NewPackSetID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidatePackSetID checks that id is 32 lowercase hex characters.
func ValidatePackSetID(id string) error {
	if !packSetIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q must be a 32 character lowercase hex string", ErrInvalidPackSetID, id)
	}
	return nil
}
