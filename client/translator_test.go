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
	"testing"

	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

type quotaExceeded struct {
	Limit int    `mapstructure:"limit"`
	Scope string `mapstructure:"scope"`
	Args  []string
}

func (e quotaExceeded) Error() string {
	return fmt.Sprintf("quota %d exceeded for %s", e.Limit, e.Scope)
}

type notAStruct string

func (e notAStruct) Error() string {
	return string(e)
}

func TestErrorTranslatorDefine(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut := NewErrorTranslator()

	// Case 0: invalid definitions
	assert.NotNil(uut.Define(nil, "com.example.nil"))
	assert.NotNil(uut.Define(notAStruct("x"), "com.example.string"))
	assert.NotNil(uut.Define(quotaExceeded{}, ""))

	// Case 1: valid definitions
	assert.Nil(uut.Define(quotaExceeded{}, "com.example.quota"))
	assert.Nil(uut.Define(&insufficientFunds{}, "com.example.funds"))

	// Case 2: rebinding a URI replaces the old type
	assert.Nil(uut.Define(&insufficientFunds{}, "com.example.quota"))
	uri, _, _ := uut.ToWire(quotaExceeded{Limit: 1})
	assert.Equal(wamp.ErrRuntimeError, uri)
	err := uut.FromWire("com.example.funds", nil, nil)
	var appErr *wamp.ApplicationError
	assert.True(errors.As(err, &appErr))
}

func TestErrorTranslatorToWire(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut := NewErrorTranslator()
	assert.Nil(uut.Define(quotaExceeded{}, "com.example.quota"))

	// Case 0: unknown error
	uri, args, kwargs := uut.ToWire(errors.New("oops"))
	assert.Equal(wamp.ErrRuntimeError, uri)
	assert.Equal(wamp.List{"oops"}, args)
	assert.Nil(kwargs)

	// Case 1: application error passes through
	uri, args, kwargs = uut.ToWire(
		fmt.Errorf("call: %w", wamp.NewApplicationError("com.example.app", wamp.List{1}, wamp.Dict{"a": 1})),
	)
	assert.Equal(wamp.URI("com.example.app"), uri)
	assert.Equal(wamp.List{1}, args)
	assert.Equal(wamp.Dict{"a": 1}, kwargs)

	// Case 2: defined error
	uri, args, kwargs = uut.ToWire(quotaExceeded{Limit: 10, Scope: "calls"})
	assert.Equal(wamp.URI("com.example.quota"), uri)
	assert.Equal(wamp.List{"quota 10 exceeded for calls"}, args)
	assert.Equal(wamp.Dict{"limit": 10, "scope": "calls", "Args": []string(nil)}, kwargs)

	// Case 3: serialization error maps to invalid payload
	uri, _, kwargs = uut.ToWire(wamp.NewSerializationError(errors.New("bad"), "encode"))
	assert.Equal(wamp.ErrInvalidPayload, uri)
	assert.Contains(kwargs, "message")
	assert.NotContains(kwargs, "Cause")
}

func TestErrorTranslatorFromWire(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut := NewErrorTranslator()
	assert.Nil(uut.Define(quotaExceeded{}, "com.example.quota"))

	// Case 0: unknown URI
	err := uut.FromWire("com.example.unknown", wamp.List{"x"}, wamp.Dict{"y": 1})
	var appErr *wamp.ApplicationError
	assert.True(errors.As(err, &appErr))
	assert.Equal(wamp.URI("com.example.unknown"), appErr.URI)
	assert.Equal(wamp.List{"x"}, appErr.Args)
	assert.Equal(wamp.Dict{"y": 1}, appErr.Kwargs)

	// Case 1: defined URI, weakly typed input
	err = uut.FromWire("com.example.quota", wamp.List{"quota exceeded"}, wamp.Dict{"limit": "25", "scope": "events"})
	quota, ok := err.(quotaExceeded)
	assert.True(ok)
	assert.Equal(25, quota.Limit)
	assert.Equal("events", quota.Scope)
	assert.Equal([]string{"quota exceeded"}, quota.Args)

	// Case 2: payload that does not decode falls back
	err = uut.FromWire("com.example.quota", nil, wamp.Dict{"limit": wamp.Dict{"nested": true}})
	assert.True(errors.As(err, &appErr))
	assert.Equal(wamp.URI("com.example.quota"), appErr.URI)

	// Case 3: built-in invalid payload mapping
	err = uut.FromWire(wamp.ErrInvalidPayload, wamp.List{"bad"}, wamp.Dict{"message": "decode failed"})
	var serErr *wamp.SerializationError
	assert.True(errors.As(err, &serErr))
	assert.Equal("decode failed", serErr.Message)
	assert.Equal([]interface{}{"bad"}, serErr.Args)

	// Case 4: invalid payload carrying only the error text
	err = uut.FromWire(wamp.ErrInvalidPayload, wamp.List{"yield payload not encodable"}, nil)
	assert.True(errors.As(err, &serErr))
	assert.Equal("yield payload not encodable", serErr.Error())

	// Case 5: args the type can not hold, and that its text does not reproduce
	assert.Nil(uut.Define(&insufficientFunds{}, "com.example.funds"))
	err = uut.FromWire("com.example.funds", wamp.List{"short", 42}, wamp.Dict{"Balance": 1, "Needed": 2})
	assert.True(errors.As(err, &appErr))
	assert.Equal(wamp.List{"short", 42}, appErr.Args)
	assert.Equal(wamp.Dict{"Balance": 1, "Needed": 2}, appErr.Kwargs)

	// Case 6: args matching the error text decode into the type
	err = uut.FromWire(
		"com.example.funds", wamp.List{"balance 1 below 2"}, wamp.Dict{"Balance": 1, "Needed": 2},
	)
	var fundsErr *insufficientFunds
	assert.True(errors.As(err, &fundsErr))
	assert.Equal(int64(2), fundsErr.Needed)

	// Case 7: a kwarg named "args" shadows the positional args
	err = uut.FromWire(
		"com.example.quota", wamp.List{"lost"}, wamp.Dict{"limit": 1, "args": []interface{}{"kw"}},
	)
	assert.True(errors.As(err, &appErr))
	assert.Equal(wamp.List{"lost"}, appErr.Args)
}
