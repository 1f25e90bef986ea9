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

// Package serialize provides the WAMP serializers and subprotocol negotiation.
package serialize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alwitt/wampc/wamp"
)

// Serializer encodes / decodes WAMP messages to / from transport frames
type Serializer interface {
	// ID the serializer ID used in the subprotocol, i.e. "json"
	ID() string
	// Binary whether frames are sent as binary WebSocket messages
	Binary() bool
	// Serialize encode one message
	Serialize(msg wamp.Message) ([]byte, error)
	// Deserialize decode the messages carried in one frame
	Deserialize(data []byte) ([]wamp.Message, error)
}

// Serializer IDs
const (
	JSON    = "json"
	MsgPack = "msgpack"
)

// New define a serializer by ID
func New(id string) (Serializer, error) {
	switch id {
	case JSON:
		return NewJSONSerializer(), nil
	case MsgPack:
		return NewMsgPackSerializer(), nil
	default:
		return nil, fmt.Errorf("unsupported serializer '%s'", id)
	}
}

// Subprotocol the WebSocket subprotocol for a serializer ID
func Subprotocol(id string) string {
	return fmt.Sprintf("wamp.2.%s", id)
}

// ParseSubprotocol split a WAMP WebSocket subprotocol, i.e. "wamp.2.json",
// into its version and serializer ID
func ParseSubprotocol(subprotocol string) (int, string, error) {
	parts := strings.Split(subprotocol, ".")
	if len(parts) < 3 || parts[0] != "wamp" {
		return 0, "", fmt.Errorf("'%s' is not a WAMP subprotocol", subprotocol)
	}
	version, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, "", fmt.Errorf("'%s' has an invalid WAMP version: %w", subprotocol, err)
	}
	return version, strings.Join(parts[2:], "."), nil
}

// Set the serializers offered during the WebSocket handshake, in order of preference
type Set struct {
	ordered []Serializer
	byID    map[string]Serializer
}

// NewSet define a Set from serializer IDs
func NewSet(ids ...string) (*Set, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("no serializers specified")
	}
	set := &Set{byID: map[string]Serializer{}}
	for _, id := range ids {
		if _, ok := set.byID[id]; ok {
			return nil, fmt.Errorf("serializer '%s' listed twice", id)
		}
		ser, err := New(id)
		if err != nil {
			return nil, err
		}
		set.ordered = append(set.ordered, ser)
		set.byID[id] = ser
	}
	return set, nil
}

// Subprotocols the subprotocols to advertise
func (s *Set) Subprotocols() []string {
	result := make([]string, len(s.ordered))
	for idx, ser := range s.ordered {
		result[idx] = Subprotocol(ser.ID())
	}
	return result
}

// Negotiated select the serializer for the subprotocol chosen by the router
//
// Under strict negotiation the router must select one of the offered
// subprotocols. Otherwise a missing or unknown selection falls back to JSON,
// if JSON is in the set.
func (s *Set) Negotiated(subprotocol string, strict bool) (Serializer, error) {
	if subprotocol != "" {
		version, id, err := ParseSubprotocol(subprotocol)
		if err == nil && version == 2 {
			if ser, ok := s.byID[id]; ok {
				return ser, nil
			}
		}
	}
	if strict {
		return nil, fmt.Errorf(
			"router selected subprotocol '%s', expected one of %s",
			subprotocol, strings.Join(s.Subprotocols(), ","),
		)
	}
	if ser, ok := s.byID[JSON]; ok {
		return ser, nil
	}
	return nil, fmt.Errorf("no subprotocol negotiated and JSON is not enabled")
}
