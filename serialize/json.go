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
	"bytes"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/alwitt/wampc/wamp"
)

// binaryPrefix marks a base64 encoded binary value inside a JSON string
const binaryPrefix = "\x00"

// jsonSerializer implements Serializer with JSON text frames
type jsonSerializer struct{}

// NewJSONSerializer define the JSON serializer
func NewJSONSerializer() Serializer {
	return jsonSerializer{}
}

func (s jsonSerializer) ID() string {
	return JSON
}

func (s jsonSerializer) Binary() bool {
	return false
}

// Serialize encode one message. Binary values are written as "\x00" + base64.
func (s jsonSerializer) Serialize(msg wamp.Message) ([]byte, error) {
	list, err := wamp.ToWireList(msg)
	if err != nil {
		return nil, wamp.NewSerializationError(err, "convert %s", msg.MessageType())
	}
	encoded, err := json.Marshal(encodeBinary(list))
	if err != nil {
		return nil, wamp.NewSerializationError(err, "JSON encode %s", msg.MessageType())
	}
	return encoded, nil
}

// Deserialize decode one JSON frame
func (s jsonSerializer) Deserialize(data []byte) ([]wamp.Message, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw []interface{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, wamp.NewSerializationError(err, "JSON decode")
	}
	list := decodeBinary(wamp.Normalize(raw)).(wamp.List)
	msg, err := wamp.FromList(list)
	if err != nil {
		return nil, err
	}
	return []wamp.Message{msg}, nil
}

func encodeBinary(v interface{}) interface{} {
	switch t := v.(type) {
	case []byte:
		return binaryPrefix + base64.StdEncoding.EncodeToString(t)
	case []interface{}:
		for i, e := range t {
			t[i] = encodeBinary(e)
		}
		return t
	case map[string]interface{}:
		for k, e := range t {
			t[k] = encodeBinary(e)
		}
		return t
	default:
		return v
	}
}

func decodeBinary(v interface{}) interface{} {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, binaryPrefix) {
			if decoded, err := base64.StdEncoding.DecodeString(t[len(binaryPrefix):]); err == nil {
				return decoded
			}
		}
		return t
	case wamp.List:
		for i, e := range t {
			t[i] = decodeBinary(e)
		}
		return t
	case wamp.Dict:
		for k, e := range t {
			t[k] = decodeBinary(e)
		}
		return t
	default:
		return v
	}
}
