// Copyright 2022 The wampc Authors
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

package common

import (
	"fmt"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// Component base structure for a Component
type Component struct {
	LogTags log.Fields
}

// NewComponent define a Component with the standard log tags
//
// If instance is empty, a random instance name is generated.
func NewComponent(module, component, instance string) Component {
	if instance == "" {
		instance = uuid.New().String()
	}
	return Component{
		LogTags: log.Fields{"module": module, "component": component, "instance": instance},
	}
}

// ExtendLogTags return a copy of the log tags with additional fields
func (c Component) ExtendLogTags(extra log.Fields) log.Fields {
	result := log.Fields{}
	for k, v := range c.LogTags {
		result[k] = v
	}
	for k, v := range extra {
		result[k] = v
	}
	return result
}

// RecoverAsError run fn, converting a panic into an error
func RecoverAsError(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if asErr, ok := r.(error); ok {
				err = fmt.Errorf("recovered from panic: %w", asErr)
			} else {
				err = fmt.Errorf("recovered from panic: %v", r)
			}
		}
	}()
	return fn()
}
