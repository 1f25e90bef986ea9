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

package wamp

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestMessageListConversion(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	roundTrip := func(msg Message) Message {
		list, err := ToList(msg)
		assert.Nil(err)
		parsed, err := FromList(Normalize(list).(List))
		assert.Nil(err)
		return parsed
	}

	// Case 0: messages without payload
	{
		msgs := []Message{
			&Hello{Realm: "realm1", Details: Dict{"roles": Dict{"caller": Dict{}}}},
			&Welcome{ID: 9129137332, Details: Dict{"authrole": "anonymous"}},
			&Abort{Details: Dict{}, Reason: ErrNoSuchRealm},
			&Challenge{AuthMethod: "wampcra", Extra: Dict{"challenge": "abc"}},
			&Authenticate{Signature: "sig", Extra: Dict{}},
			&Goodbye{Details: Dict{}, Reason: CloseNormal},
			&Published{Request: 1, Publication: 2},
			&Subscribe{Request: 3, Options: Dict{"match": "prefix"}, Topic: "com.topic"},
			&Subscribed{Request: 3, Subscription: 4},
			&Unsubscribe{Request: 5, Subscription: 4},
			&Unsubscribed{Request: 5},
			&Register{Request: 6, Options: Dict{}, Procedure: "com.add"},
			&Registered{Request: 6, Registration: 7},
			&Unregister{Request: 8, Registration: 7},
			&Unregistered{Request: 8},
			&Interrupt{Request: 9, Options: Dict{}},
		}
		for _, msg := range msgs {
			parsed := roundTrip(msg)
			assert.Equal(msg, parsed)
			// Message type should survive
			assert.Equal(msg.MessageType(), parsed.MessageType())
		}
	}

	// Case 1: payload carrying messages
	{
		msgs := []Message{
			&Call{
				Request: 10, Options: Dict{}, Procedure: "com.add",
				Arguments: List{int64(2), int64(3)},
			},
			&Result{
				Request: 10, Details: Dict{}, Arguments: List{int64(5)}, ArgumentsKw: Dict{"a": "b"},
			},
			&Error{
				Type: CALL, Request: 10, Details: Dict{}, Error: ErrRuntimeError,
				Arguments: List{"failed"},
			},
			&Publish{
				Request: 11, Options: Dict{"acknowledge": true}, Topic: "com.topic",
				Arguments: List{"hi"},
			},
			&Event{
				Subscription: 4, Publication: 12, Details: Dict{}, Arguments: List{"hi"},
			},
			&Invocation{
				Request: 13, Registration: 7, Details: Dict{}, Arguments: List{"hi"},
			},
			&Yield{Request: 13, Options: Dict{}, Arguments: List{"hi"}},
		}
		for _, msg := range msgs {
			assert.Equal(msg, roundTrip(msg))
		}
	}

	// Case 2: kwargs only forces an empty args list on the wire
	{
		msg := &Yield{Request: 1, Options: Dict{}, ArgumentsKw: Dict{"x": int64(1)}}
		list, err := ToList(msg)
		assert.Nil(err)
		assert.Len(list, 5)
		assert.Equal(List{}, list[3])
		parsed := roundTrip(msg).(*Yield)
		assert.Empty(parsed.Arguments)
		assert.Equal(Dict{"x": int64(1)}, parsed.ArgumentsKw)
	}

	// Case 3: empty payload is omitted
	{
		list, err := ToList(&Result{Request: 1})
		assert.Nil(err)
		assert.Len(list, 3)
	}
}

func TestMessageListParseFailure(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	isProtocolError := func(err error) bool {
		var protoErr *ProtocolError
		return errors.As(err, &protoErr)
	}

	cases := []List{
		// Empty
		{},
		// Type code not an integer
		{"hello", "realm1", Dict{}},
		// Unknown type code
		{int64(99), int64(1)},
		// Too short
		{int64(WELCOME), int64(1)},
		// Too long
		{int64(PUBLISHED), int64(1), int64(2), int64(3)},
		// Too long, payload message
		{int64(RESULT), int64(1), Dict{}, List{}, Dict{}, "extra"},
		// ID as string
		{int64(WELCOME), "1", Dict{}},
		// ID out of range
		{int64(WELCOME), int64(MaxID) + 1, Dict{}},
		// Negative ID
		{int64(UNSUBSCRIBED), int64(-1)},
		// Details not a dict
		{int64(WELCOME), int64(1), List{}},
		// Arguments not a list
		{int64(RESULT), int64(1), Dict{}, "not-a-list"},
		// URI not a string
		{int64(ABORT), Dict{}, int64(1)},
	}
	for idx, list := range cases {
		_, err := FromList(list)
		assert.NotNil(err, "case %d", idx)
		assert.True(isProtocolError(err), "case %d", idx)
	}

	// Floating point encoded IDs are accepted when integral
	{
		msg, err := FromList(List{float64(UNSUBSCRIBED), float64(42)})
		assert.Nil(err)
		assert.Equal(&Unsubscribed{Request: 42}, msg)
		_, err = FromList(List{int64(UNSUBSCRIBED), float64(4.5)})
		assert.NotNil(err)
	}
}

func TestNormalize(t *testing.T) {
	assert := assert.New(t)

	// Case 0: JSON numbers
	{
		assert.Equal(int64(12), Normalize(json.Number("12")))
		assert.Equal(float64(1.5), Normalize(json.Number("1.5")))
		assert.Equal(uint64(18446744073709551615), Normalize(json.Number("18446744073709551615")))
	}

	// Case 1: integer kinds
	{
		assert.Equal(int64(3), Normalize(3))
		assert.Equal(int64(3), Normalize(uint8(3)))
		assert.Equal(int64(3), Normalize(int32(3)))
		assert.Equal(int64(3), Normalize(ID(3)))
		assert.Equal(float64(2), Normalize(float32(2)))
	}

	// Case 2: nested containers
	{
		in := map[interface{}]interface{}{
			"a": []interface{}{uint16(1), map[string]interface{}{"b": int8(2)}},
			5:   "five",
		}
		expected := Dict{
			"a": List{int64(1), Dict{"b": int64(2)}},
			"5": "five",
		}
		assert.Equal(expected, Normalize(in))
	}
}

func TestDictAccessors(t *testing.T) {
	assert := assert.New(t)

	d := Dict{
		"authid": "alice", "caller": int64(12), "flag": true, "nested": Dict{"x": "y"},
		"bad_id": "12",
	}
	s, ok := d.String("authid")
	assert.True(ok)
	assert.Equal("alice", s)
	_, ok = d.String("caller")
	assert.False(ok)
	id, ok := d.ID("caller")
	assert.True(ok)
	assert.Equal(ID(12), id)
	_, ok = d.ID("bad_id")
	assert.False(ok)
	b, ok := d.Bool("flag")
	assert.True(ok)
	assert.True(b)
	nd, ok := d.Dict("nested")
	assert.True(ok)
	assert.Equal(Dict{"x": "y"}, nd)
	_, ok = d.Dict("missing")
	assert.False(ok)
}
