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

package serialize

import (
	"errors"
	"testing"

	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestSubprotocolNegotiation(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	// Case 0: parse subprotocol
	{
		version, id, err := ParseSubprotocol("wamp.2.json")
		assert.Nil(err)
		assert.Equal(2, version)
		assert.Equal("json", id)
		version, id, err = ParseSubprotocol("wamp.2.msgpack.batched")
		assert.Nil(err)
		assert.Equal(2, version)
		assert.Equal("msgpack.batched", id)
		_, _, err = ParseSubprotocol("mqtt.2.json")
		assert.NotNil(err)
		_, _, err = ParseSubprotocol("wamp.two.json")
		assert.NotNil(err)
		_, _, err = ParseSubprotocol("wamp")
		assert.NotNil(err)
	}

	// Case 1: invalid sets
	{
		_, err := NewSet()
		assert.NotNil(err)
		_, err = NewSet("cbor")
		assert.NotNil(err)
		_, err = NewSet("json", "json")
		assert.NotNil(err)
	}

	// Case 2: preference order and strict negotiation
	{
		set, err := NewSet(MsgPack, JSON)
		assert.Nil(err)
		assert.Equal([]string{"wamp.2.msgpack", "wamp.2.json"}, set.Subprotocols())

		ser, err := set.Negotiated("wamp.2.json", true)
		assert.Nil(err)
		assert.Equal(JSON, ser.ID())
		assert.False(ser.Binary())

		ser, err = set.Negotiated("wamp.2.msgpack", true)
		assert.Nil(err)
		assert.Equal(MsgPack, ser.ID())
		assert.True(ser.Binary())

		_, err = set.Negotiated("", true)
		assert.NotNil(err)
		_, err = set.Negotiated("wamp.2.cbor", true)
		assert.NotNil(err)
		_, err = set.Negotiated("wamp.1.json", true)
		assert.NotNil(err)
	}

	// Case 3: lenient negotiation falls back to JSON
	{
		set, err := NewSet(MsgPack, JSON)
		assert.Nil(err)
		ser, err := set.Negotiated("", false)
		assert.Nil(err)
		assert.Equal(JSON, ser.ID())

		set, err = NewSet(MsgPack)
		assert.Nil(err)
		_, err = set.Negotiated("", false)
		assert.NotNil(err)
	}
}

func TestSerializerRoundTrip(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	msgs := []wamp.Message{
		&wamp.Hello{Realm: "realm1", Details: wamp.Dict{"roles": wamp.ClientRoles()}},
		&wamp.Call{
			Request: 1, Options: wamp.Dict{}, Procedure: "com.add",
			Arguments: wamp.List{2, 3},
		},
		&wamp.Result{
			Request: 1, Details: wamp.Dict{},
			Arguments: wamp.List{5}, ArgumentsKw: wamp.Dict{"note": "sum", "nested": wamp.Dict{"a": 1.5}},
		},
		&wamp.Event{
			Subscription: 1 << 52, Publication: 77, Details: wamp.Dict{},
			Arguments: wamp.List{"hi", true, nil},
		},
		&wamp.Error{
			Type: wamp.INVOCATION, Request: 3, Details: wamp.Dict{}, Error: wamp.ErrInvalidPayload,
		},
	}
	expected := []wamp.Message{
		&wamp.Hello{Realm: "realm1", Details: wamp.Normalize(wamp.Dict{"roles": wamp.ClientRoles()}).(wamp.Dict)},
		&wamp.Call{
			Request: 1, Options: wamp.Dict{}, Procedure: "com.add",
			Arguments: wamp.List{int64(2), int64(3)},
		},
		&wamp.Result{
			Request: 1, Details: wamp.Dict{},
			Arguments:   wamp.List{int64(5)},
			ArgumentsKw: wamp.Dict{"note": "sum", "nested": wamp.Dict{"a": 1.5}},
		},
		&wamp.Event{
			Subscription: 1 << 52, Publication: 77, Details: wamp.Dict{},
			Arguments: wamp.List{"hi", true, nil},
		},
		&wamp.Error{
			Type: wamp.INVOCATION, Request: 3, Details: wamp.Dict{}, Error: wamp.ErrInvalidPayload,
		},
	}

	for _, id := range []string{JSON, MsgPack} {
		ser, err := New(id)
		assert.Nil(err)
		for idx, msg := range msgs {
			encoded, err := ser.Serialize(msg)
			assert.Nil(err, "%s case %d", id, idx)
			decoded, err := ser.Deserialize(encoded)
			assert.Nil(err, "%s case %d", id, idx)
			assert.Len(decoded, 1)
			assert.Equal(expected[idx], decoded[0], "%s case %d", id, idx)
		}
	}
}

func TestSerializerBinaryPayload(t *testing.T) {
	assert := assert.New(t)

	payload := []byte{0x00, 0x01, 0xfe, 0xff}
	msg := &wamp.Publish{
		Request: 1, Options: wamp.Dict{}, Topic: "com.bin", Arguments: wamp.List{payload, "text"},
		ArgumentsKw: wamp.Dict{"blob": payload},
	}
	for _, id := range []string{JSON, MsgPack} {
		ser, err := New(id)
		assert.Nil(err)
		encoded, err := ser.Serialize(msg)
		assert.Nil(err)
		decoded, err := ser.Deserialize(encoded)
		assert.Nil(err)
		publish := decoded[0].(*wamp.Publish)
		assert.Equal(payload, publish.Arguments[0], id)
		assert.Equal("text", publish.Arguments[1], id)
		assert.Equal(payload, publish.ArgumentsKw["blob"], id)
		assert.Equal(wamp.URI("com.bin"), publish.Topic, id)
	}
}

func TestSerializerFailures(t *testing.T) {
	assert := assert.New(t)

	isSerializationError := func(err error) bool {
		var serErr *wamp.SerializationError
		return errors.As(err, &serErr)
	}
	isProtocolError := func(err error) bool {
		var protoErr *wamp.ProtocolError
		return errors.As(err, &protoErr)
	}

	ser := NewJSONSerializer()

	// Case 0: payload which can't be encoded
	{
		_, err := ser.Serialize(&wamp.Yield{
			Request: 1, Options: wamp.Dict{}, Arguments: wamp.List{make(chan int)},
		})
		assert.NotNil(err)
		assert.True(isSerializationError(err))
	}

	// Case 1: frame which is not JSON
	{
		_, err := ser.Deserialize([]byte("not json"))
		assert.True(isSerializationError(err))
		_, err = NewMsgPackSerializer().Deserialize([]byte{0xc1})
		assert.True(isSerializationError(err))
	}

	// Case 2: valid JSON but invalid message
	{
		_, err := ser.Deserialize([]byte(`[2, "session", {}]`))
		assert.True(isProtocolError(err))
		_, err = ser.Deserialize([]byte(`[]`))
		assert.True(isProtocolError(err))
	}
}
