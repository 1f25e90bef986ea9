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

package client

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/alwitt/wampc/wamp"
	"github.com/mitchellh/mapstructure"
)

// ErrorTranslator maps between local error types and WAMP error URIs
type ErrorTranslator struct {
	lock   sync.RWMutex
	byURI  map[wamp.URI]reflect.Type
	byType map[reflect.Type]wamp.URI
}

// NewErrorTranslator define an ErrorTranslator with the built-in mappings
func NewErrorTranslator() *ErrorTranslator {
	t := &ErrorTranslator{
		byURI:  map[wamp.URI]reflect.Type{},
		byType: map[reflect.Type]wamp.URI{},
	}
	_ = t.Define(&wamp.SerializationError{}, wamp.ErrInvalidPayload)
	return t
}

// Define bind an error type to a URI
//
// prototype must be a struct, or a pointer to a struct, implementing error.
// Outbound, errors of that type are sent with the URI, the error text as the
// only argument, and the exported fields as keyword arguments. Inbound, the
// URI is decoded back into that type from the keyword arguments, plus the
// positional arguments under "args".
func (t *ErrorTranslator) Define(prototype error, uri wamp.URI) error {
	if prototype == nil {
		return fmt.Errorf("nil error prototype")
	}
	if uri == "" {
		return fmt.Errorf("empty error URI")
	}
	theType := reflect.TypeOf(prototype)
	structType := theType
	if structType.Kind() == reflect.Ptr {
		structType = structType.Elem()
	}
	if structType.Kind() != reflect.Struct {
		return fmt.Errorf("error prototype %s is not a struct", theType)
	}
	t.lock.Lock()
	defer t.lock.Unlock()
	if oldType, ok := t.byURI[uri]; ok {
		delete(t.byType, oldType)
	}
	if oldURI, ok := t.byType[theType]; ok {
		delete(t.byURI, oldURI)
	}
	t.byURI[uri] = theType
	t.byType[theType] = uri
	return nil
}

// ToWire convert an error raised by local code into ERROR reply fields
func (t *ErrorTranslator) ToWire(err error) (wamp.URI, wamp.List, wamp.Dict) {
	var appErr *wamp.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.URI, appErr.Args, appErr.Kwargs
	}
	t.lock.RLock()
	defer t.lock.RUnlock()
	for e := err; e != nil; e = errors.Unwrap(e) {
		if uri, ok := t.byType[reflect.TypeOf(e)]; ok {
			return uri, wamp.List{e.Error()}, exportedFields(e)
		}
	}
	return wamp.ErrRuntimeError, wamp.List{err.Error()}, nil
}

// FromWire convert ERROR reply fields into an error
//
// Falls back to *wamp.ApplicationError when the URI is not defined, or the
// payload does not decode into the defined type.
func (t *ErrorTranslator) FromWire(uri wamp.URI, args wamp.List, kwargs wamp.Dict) error {
	fallback := wamp.NewApplicationError(uri, args, kwargs)
	t.lock.RLock()
	theType, ok := t.byURI[uri]
	t.lock.RUnlock()
	if !ok {
		return fallback
	}

	structType := theType
	if theType.Kind() == reflect.Ptr {
		structType = theType.Elem()
	}
	instance := reflect.New(structType)
	input := map[string]interface{}{}
	for k, v := range kwargs {
		input[k] = v
	}
	argsInInput := false
	if _, ok := input["args"]; !ok && len(args) > 0 {
		input["args"] = []interface{}(args)
		argsInInput = true
	}
	var meta mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           instance.Interface(),
		Metadata:         &meta,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return fallback
	}
	if err := decoder.Decode(input); err != nil {
		return fallback
	}

	var result interface{}
	if theType.Kind() == reflect.Ptr {
		result = instance.Interface()
	} else {
		result = instance.Elem().Interface()
	}
	asErr, ok := result.(error)
	if !ok {
		return fallback
	}
	// Positional args the type has no field for must be reproduced by its text
	if len(args) > 0 && (!argsInInput || argsUnused(meta)) {
		if len(args) != 1 || fmt.Sprint(args[0]) != asErr.Error() {
			return fallback
		}
	}
	return asErr
}

// argsUnused whether the "args" input key matched no field
func argsUnused(meta mapstructure.Metadata) bool {
	for _, key := range meta.Unused {
		if key == "args" {
			return true
		}
	}
	return false
}

// exportedFields collect the exported, non-error fields of a struct error
func exportedFields(e error) wamp.Dict {
	v := reflect.ValueOf(e)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}
	errorType := reflect.TypeOf((*error)(nil)).Elem()
	result := wamp.Dict{}
	for i := 0; i < v.NumField(); i++ {
		field := v.Type().Field(i)
		if field.PkgPath != "" || field.Type.Implements(errorType) {
			continue
		}
		name := field.Name
		if tag := field.Tag.Get("mapstructure"); tag != "" {
			tagParts := strings.Split(tag, ",")
			if tagParts[0] == "-" {
				continue
			}
			if tagParts[0] != "" {
				name = tagParts[0]
			}
			if hasTagOption(tagParts[1:], "omitempty") && v.Field(i).IsZero() {
				continue
			}
		}
		result[name] = v.Field(i).Interface()
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func hasTagOption(options []string, option string) bool {
	for _, opt := range options {
		if opt == option {
			return true
		}
	}
	return false
}
