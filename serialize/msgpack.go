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
	"reflect"

	"github.com/alwitt/wampc/wamp"
	"github.com/ugorji/go/codec"
)

// msgpackSerializer implements Serializer with MsgPack binary frames
type msgpackSerializer struct {
	handle *codec.MsgpackHandle
}

// NewMsgPackSerializer define the MsgPack serializer
func NewMsgPackSerializer() Serializer {
	handle := &codec.MsgpackHandle{}
	// str8 and bin types from the current msgpack format. With WriteExt, str
	// decodes to string and bin stays []byte.
	handle.WriteExt = true
	handle.RawToString = false
	handle.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return msgpackSerializer{handle: handle}
}

func (s msgpackSerializer) ID() string {
	return MsgPack
}

func (s msgpackSerializer) Binary() bool {
	return true
}

// Serialize encode one message
func (s msgpackSerializer) Serialize(msg wamp.Message) ([]byte, error) {
	list, err := wamp.ToWireList(msg)
	if err != nil {
		return nil, wamp.NewSerializationError(err, "convert %s", msg.MessageType())
	}
	var encoded []byte
	if err := codec.NewEncoderBytes(&encoded, s.handle).Encode(list); err != nil {
		return nil, wamp.NewSerializationError(err, "MsgPack encode %s", msg.MessageType())
	}
	return encoded, nil
}

// Deserialize decode one MsgPack frame
func (s msgpackSerializer) Deserialize(data []byte) ([]wamp.Message, error) {
	var raw []interface{}
	if err := codec.NewDecoderBytes(data, s.handle).Decode(&raw); err != nil {
		return nil, wamp.NewSerializationError(err, "MsgPack decode")
	}
	msg, err := wamp.FromList(wamp.Normalize(raw).(wamp.List))
	if err != nil {
		return nil, err
	}
	return []wamp.Message{msg}, nil
}
