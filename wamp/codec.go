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
	"fmt"
	"math"
	"strconv"
)

// withPayload append the optional Arguments / ArgumentsKw to a message list
func withPayload(list List, args List, kwargs Dict) List {
	if len(kwargs) > 0 {
		if args == nil {
			args = List{}
		}
		return append(list, args, kwargs)
	}
	if len(args) > 0 {
		return append(list, args)
	}
	return list
}

func orEmpty(d Dict) Dict {
	if d == nil {
		return Dict{}
	}
	return d
}

// ToList convert a message into its wire form [TYPE_CODE, ...fields]
func ToList(msg Message) (List, error) {
	switch m := msg.(type) {
	case *Hello:
		return List{HELLO, m.Realm, orEmpty(m.Details)}, nil
	case *Welcome:
		return List{WELCOME, m.ID, orEmpty(m.Details)}, nil
	case *Abort:
		return List{ABORT, orEmpty(m.Details), m.Reason}, nil
	case *Challenge:
		return List{CHALLENGE, m.AuthMethod, orEmpty(m.Extra)}, nil
	case *Authenticate:
		return List{AUTHENTICATE, m.Signature, orEmpty(m.Extra)}, nil
	case *Goodbye:
		return List{GOODBYE, orEmpty(m.Details), m.Reason}, nil
	case *Error:
		return withPayload(
			List{ERROR, m.Type, m.Request, orEmpty(m.Details), m.Error}, m.Arguments, m.ArgumentsKw,
		), nil
	case *Publish:
		return withPayload(
			List{PUBLISH, m.Request, orEmpty(m.Options), m.Topic}, m.Arguments, m.ArgumentsKw,
		), nil
	case *Published:
		return List{PUBLISHED, m.Request, m.Publication}, nil
	case *Subscribe:
		return List{SUBSCRIBE, m.Request, orEmpty(m.Options), m.Topic}, nil
	case *Subscribed:
		return List{SUBSCRIBED, m.Request, m.Subscription}, nil
	case *Unsubscribe:
		return List{UNSUBSCRIBE, m.Request, m.Subscription}, nil
	case *Unsubscribed:
		return List{UNSUBSCRIBED, m.Request}, nil
	case *Event:
		return withPayload(
			List{EVENT, m.Subscription, m.Publication, orEmpty(m.Details)}, m.Arguments, m.ArgumentsKw,
		), nil
	case *Call:
		return withPayload(
			List{CALL, m.Request, orEmpty(m.Options), m.Procedure}, m.Arguments, m.ArgumentsKw,
		), nil
	case *Result:
		return withPayload(
			List{RESULT, m.Request, orEmpty(m.Details)}, m.Arguments, m.ArgumentsKw,
		), nil
	case *Register:
		return List{REGISTER, m.Request, orEmpty(m.Options), m.Procedure}, nil
	case *Registered:
		return List{REGISTERED, m.Request, m.Registration}, nil
	case *Unregister:
		return List{UNREGISTER, m.Request, m.Registration}, nil
	case *Unregistered:
		return List{UNREGISTERED, m.Request}, nil
	case *Invocation:
		return withPayload(
			List{INVOCATION, m.Request, m.Registration, orEmpty(m.Details)}, m.Arguments, m.ArgumentsKw,
		), nil
	case *Interrupt:
		return List{INTERRUPT, m.Request, orEmpty(m.Options)}, nil
	case *Yield:
		return withPayload(
			List{YIELD, m.Request, orEmpty(m.Options)}, m.Arguments, m.ArgumentsKw,
		), nil
	default:
		return nil, fmt.Errorf("unsupported message %T", msg)
	}
}

// ToWireList same as ToList, but with every field reduced to plain
// interface{} / map[string]interface{} / []interface{} values so encoders
// without knowledge of the wamp types produce canonical output.
func ToWireList(msg Message) ([]interface{}, error) {
	list, err := ToList(msg)
	if err != nil {
		return nil, err
	}
	return toPlain(list).([]interface{}), nil
}

func toPlain(v interface{}) interface{} {
	switch t := v.(type) {
	case List:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = toPlain(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = toPlain(e)
		}
		return out
	case Dict:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = toPlain(e)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = toPlain(e)
		}
		return out
	case MessageType:
		return int64(t)
	case ID:
		return uint64(t)
	case URI:
		return string(t)
	default:
		return v
	}
}

// arity describe the legal lengths of a message list, including the type code
type arity struct {
	fixed   int
	payload bool
}

var arities = map[MessageType]arity{
	HELLO:        {3, false},
	WELCOME:      {3, false},
	ABORT:        {3, false},
	CHALLENGE:    {3, false},
	AUTHENTICATE: {3, false},
	GOODBYE:      {3, false},
	ERROR:        {5, true},
	PUBLISH:      {4, true},
	PUBLISHED:    {3, false},
	SUBSCRIBE:    {4, false},
	SUBSCRIBED:   {3, false},
	UNSUBSCRIBE:  {3, false},
	UNSUBSCRIBED: {2, false},
	EVENT:        {4, true},
	CALL:         {4, true},
	RESULT:       {3, true},
	REGISTER:     {4, false},
	REGISTERED:   {3, false},
	UNREGISTER:   {3, false},
	UNREGISTERED: {2, false},
	INVOCATION:   {4, true},
	INTERRUPT:    {3, false},
	YIELD:        {3, true},
}

// fieldReader walks the fields of a message list, recording the first failure
type fieldReader struct {
	msgType MessageType
	list    List
	err     error
}

func (r *fieldReader) fail(idx int, what string, v interface{}) {
	if r.err == nil {
		r.err = NewProtocolError("%s field %d: expected %s, got %T", r.msgType, idx, what, v)
	}
}

func (r *fieldReader) id(idx int) ID {
	id, err := toID(r.list[idx])
	if err != nil {
		r.fail(idx, "id", r.list[idx])
	}
	return id
}

func (r *fieldReader) uri(idx int) URI {
	s, ok := r.list[idx].(string)
	if !ok {
		r.fail(idx, "uri", r.list[idx])
	}
	return URI(s)
}

func (r *fieldReader) str(idx int) string {
	s, ok := r.list[idx].(string)
	if !ok {
		r.fail(idx, "string", r.list[idx])
	}
	return s
}

func (r *fieldReader) dict(idx int) Dict {
	d, err := toDict(r.list[idx])
	if err != nil {
		r.fail(idx, "dict", r.list[idx])
	}
	return d
}

func (r *fieldReader) readMsgType(idx int) MessageType {
	v, err := toInt64(r.list[idx])
	if err != nil {
		r.fail(idx, "message type", r.list[idx])
	}
	return MessageType(v)
}

// payload read the optional Arguments / ArgumentsKw starting at idx
func (r *fieldReader) payload(idx int) (List, Dict) {
	var args List
	var kwargs Dict
	if len(r.list) > idx {
		l, err := toList(r.list[idx])
		if err != nil {
			r.fail(idx, "list", r.list[idx])
		}
		args = l
	}
	if len(r.list) > idx+1 {
		kwargs = r.dict(idx + 1)
	}
	return args, kwargs
}

// FromList convert a decoded wire list into a message
//
// The list is expected to be normalized (see Normalize). Arity and field
// types are checked; any failure is a *ProtocolError.
func FromList(list List) (Message, error) {
	if len(list) == 0 {
		return nil, NewProtocolError("empty message")
	}
	code, err := toInt64(list[0])
	if err != nil {
		return nil, NewProtocolError("message type code is not an integer: %T", list[0])
	}
	msgType := MessageType(code)
	shape, ok := arities[msgType]
	if !ok {
		return nil, NewProtocolError("unknown message type code %d", code)
	}
	maxLen := shape.fixed
	if shape.payload {
		maxLen += 2
	}
	if len(list) < shape.fixed || len(list) > maxLen {
		return nil, NewProtocolError("%s with invalid length %d", msgType, len(list))
	}

	r := &fieldReader{msgType: msgType, list: list}
	var msg Message
	switch msgType {
	case HELLO:
		msg = &Hello{Realm: r.uri(1), Details: r.dict(2)}
	case WELCOME:
		msg = &Welcome{ID: r.id(1), Details: r.dict(2)}
	case ABORT:
		msg = &Abort{Details: r.dict(1), Reason: r.uri(2)}
	case CHALLENGE:
		msg = &Challenge{AuthMethod: r.str(1), Extra: r.dict(2)}
	case AUTHENTICATE:
		msg = &Authenticate{Signature: r.str(1), Extra: r.dict(2)}
	case GOODBYE:
		msg = &Goodbye{Details: r.dict(1), Reason: r.uri(2)}
	case ERROR:
		m := &Error{Type: r.readMsgType(1), Request: r.id(2), Details: r.dict(3), Error: r.uri(4)}
		m.Arguments, m.ArgumentsKw = r.payload(5)
		msg = m
	case PUBLISH:
		m := &Publish{Request: r.id(1), Options: r.dict(2), Topic: r.uri(3)}
		m.Arguments, m.ArgumentsKw = r.payload(4)
		msg = m
	case PUBLISHED:
		msg = &Published{Request: r.id(1), Publication: r.id(2)}
	case SUBSCRIBE:
		msg = &Subscribe{Request: r.id(1), Options: r.dict(2), Topic: r.uri(3)}
	case SUBSCRIBED:
		msg = &Subscribed{Request: r.id(1), Subscription: r.id(2)}
	case UNSUBSCRIBE:
		msg = &Unsubscribe{Request: r.id(1), Subscription: r.id(2)}
	case UNSUBSCRIBED:
		msg = &Unsubscribed{Request: r.id(1)}
	case EVENT:
		m := &Event{Subscription: r.id(1), Publication: r.id(2), Details: r.dict(3)}
		m.Arguments, m.ArgumentsKw = r.payload(4)
		msg = m
	case CALL:
		m := &Call{Request: r.id(1), Options: r.dict(2), Procedure: r.uri(3)}
		m.Arguments, m.ArgumentsKw = r.payload(4)
		msg = m
	case RESULT:
		m := &Result{Request: r.id(1), Details: r.dict(2)}
		m.Arguments, m.ArgumentsKw = r.payload(3)
		msg = m
	case REGISTER:
		msg = &Register{Request: r.id(1), Options: r.dict(2), Procedure: r.uri(3)}
	case REGISTERED:
		msg = &Registered{Request: r.id(1), Registration: r.id(2)}
	case UNREGISTER:
		msg = &Unregister{Request: r.id(1), Registration: r.id(2)}
	case UNREGISTERED:
		msg = &Unregistered{Request: r.id(1)}
	case INVOCATION:
		m := &Invocation{Request: r.id(1), Registration: r.id(2), Details: r.dict(3)}
		m.Arguments, m.ArgumentsKw = r.payload(4)
		msg = m
	case INTERRUPT:
		msg = &Interrupt{Request: r.id(1), Options: r.dict(2)}
	case YIELD:
		m := &Yield{Request: r.id(1), Options: r.dict(2)}
		m.Arguments, m.ArgumentsKw = r.payload(3)
		msg = m
	}
	if r.err != nil {
		return nil, r.err
	}
	return msg, nil
}

// ===============================================================================
// Value normalization

// Normalize canonicalize a decoded payload value
//
// Integers become int64 (uint64 when beyond the int64 range), floats become
// float64, string-keyed and generic maps become Dict, and arrays become List.
// This lets IDs and payloads compare equal regardless of the serializer used.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, string, []byte, int64, float64:
		return v
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(t.String(), 10, 64); err == nil {
			return u
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return normalizeUint(uint64(t))
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return normalizeUint(t)
	case float32:
		return float64(t)
	case MessageType:
		return int64(t)
	case ID:
		return normalizeUint(uint64(t))
	case URI:
		return string(t)
	case List:
		out := make(List, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case []interface{}:
		out := make(List, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	case Dict:
		out := make(Dict, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[string]interface{}:
		out := make(Dict, len(t))
		for k, e := range t {
			out[k] = Normalize(e)
		}
		return out
	case map[interface{}]interface{}:
		out := make(Dict, len(t))
		for k, e := range t {
			key, ok := k.(string)
			if !ok {
				if b, isBytes := k.([]byte); isBytes {
					key = string(b)
				} else {
					key = fmt.Sprint(k)
				}
			}
			out[key] = Normalize(e)
		}
		return out
	default:
		return v
	}
}

func normalizeUint(u uint64) interface{} {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

func toInt64(v interface{}) (int64, error) {
	switch t := Normalize(v).(type) {
	case int64:
		return t, nil
	case float64:
		if t == math.Trunc(t) && math.Abs(t) <= float64(MaxID) {
			return int64(t), nil
		}
	}
	return 0, fmt.Errorf("not an integer: %T", v)
}

// toID convert a decoded value to an ID, checking the legal range
func toID(v interface{}) (ID, error) {
	switch t := Normalize(v).(type) {
	case uint64:
		if t <= uint64(MaxID) {
			return ID(t), nil
		}
	default:
		i, err := toInt64(v)
		if err != nil {
			return 0, err
		}
		if i >= 0 && ID(i) <= MaxID {
			return ID(i), nil
		}
	}
	return 0, fmt.Errorf("id out of range: %v", v)
}

func toDict(v interface{}) (Dict, error) {
	switch t := v.(type) {
	case nil:
		return Dict{}, nil
	case Dict:
		return t, nil
	case map[string]interface{}:
		return Dict(t), nil
	case map[interface{}]interface{}:
		return Normalize(t).(Dict), nil
	}
	return nil, fmt.Errorf("not a dict: %T", v)
}

func toList(v interface{}) (List, error) {
	switch t := v.(type) {
	case nil:
		return List{}, nil
	case List:
		return t, nil
	case []interface{}:
		return List(t), nil
	}
	return nil, fmt.Errorf("not a list: %T", v)
}
