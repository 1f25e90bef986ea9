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

// Package wamp defines the WAMP v2 message model, its list codec, and the
// error taxonomy shared by the client runtime.
package wamp

import "fmt"

// ID is a WAMP identifier: session, request, publication, subscription or registration
type ID uint64

// MaxID is the largest legal WAMP ID (2^53)
const MaxID ID = 1 << 53

// URI is a WAMP URI
type URI string

// List is an ordered positional payload
type List []interface{}

// Dict is a keyword payload or a details / options dictionary
type Dict map[string]interface{}

// String fetch a string entry
func (d Dict) String(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ID fetch an ID entry
func (d Dict) ID(key string) (ID, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	id, err := toID(v)
	return id, err == nil
}

// Bool fetch a boolean entry
func (d Dict) Bool(key string) (bool, bool) {
	v, ok := d[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Dict fetch a nested dictionary entry
func (d Dict) Dict(key string) (Dict, bool) {
	v, ok := d[key]
	if !ok {
		return nil, false
	}
	nd, err := toDict(v)
	return nd, err == nil
}

// Standard error and close URIs
const (
	ErrInvalidPayload       URI = "wamp.error.invalid_payload"
	ErrRuntimeError         URI = "wamp.error.runtime_error"
	ErrProtocolViolation    URI = "wamp.error.protocol_violation"
	ErrCannotAuthenticate   URI = "wamp.error.cannot_authenticate"
	ErrAuthenticationFailed URI = "wamp.error.authentication_failed"
	ErrNoSuchProcedure      URI = "wamp.error.no_such_procedure"
	ErrNoSuchRealm          URI = "wamp.error.no_such_realm"
	ErrNotAuthorized        URI = "wamp.error.not_authorized"
	ErrCanceled             URI = "wamp.error.canceled"

	CloseNormal         URI = "wamp.close.normal"
	CloseGoodbyeAndOut  URI = "wamp.close.goodbye_and_out"
	CloseSystemShutdown URI = "wamp.close.system_shutdown"
	CloseRealm          URI = "wamp.close.close_realm"
)

// WebSocket close status codes used when tearing down the transport
const (
	CloseStatusNormal        = 1000
	CloseStatusGoingAway     = 1001
	CloseStatusProtocolError = 1002
	CloseStatusInternalError = 1011
)

// Roles
const (
	RoleBroker     = "broker"
	RoleDealer     = "dealer"
	RoleCallee     = "callee"
	RoleCaller     = "caller"
	RolePublisher  = "publisher"
	RoleSubscriber = "subscriber"
)

// Features advertised in HELLO
const (
	FeatureCallerIdent       = "caller_identification"
	FeatureCallTimeout       = "call_timeout"
	FeaturePatternBasedReg   = "pattern_based_registration"
	FeatureSharedReg         = "shared_registration"
	FeaturePatternSub        = "pattern_based_subscription"
	FeaturePubExclusion      = "publisher_exclusion"
	FeaturePubIdent          = "publisher_identification"
	FeatureSubBlackWhiteList = "subscriber_blackwhite_listing"
)

// ClientRoles the role / feature dictionary announced by this client in HELLO
func ClientRoles() Dict {
	features := func(names ...string) Dict {
		f := Dict{}
		for _, n := range names {
			f[n] = true
		}
		return Dict{"features": f}
	}
	return Dict{
		RoleCaller:     features(FeatureCallerIdent, FeatureCallTimeout),
		RoleCallee:     features(FeatureCallerIdent, FeaturePatternBasedReg, FeatureSharedReg),
		RolePublisher:  features(FeaturePubExclusion, FeaturePubIdent, FeatureSubBlackWhiteList),
		RoleSubscriber: features(FeaturePatternSub, FeaturePubIdent),
	}
}

// MessageType is the WAMP message type code
type MessageType int

// Message type codes
const (
	HELLO        MessageType = 1
	WELCOME      MessageType = 2
	ABORT        MessageType = 3
	CHALLENGE    MessageType = 4
	AUTHENTICATE MessageType = 5
	GOODBYE      MessageType = 6
	ERROR        MessageType = 8
	PUBLISH      MessageType = 16
	PUBLISHED    MessageType = 17
	SUBSCRIBE    MessageType = 32
	SUBSCRIBED   MessageType = 33
	UNSUBSCRIBE  MessageType = 34
	UNSUBSCRIBED MessageType = 35
	EVENT        MessageType = 36
	CALL         MessageType = 48
	RESULT       MessageType = 50
	REGISTER     MessageType = 64
	REGISTERED   MessageType = 65
	UNREGISTER   MessageType = 66
	UNREGISTERED MessageType = 67
	INVOCATION   MessageType = 68
	INTERRUPT    MessageType = 69
	YIELD        MessageType = 70
)

var messageTypeNames = map[MessageType]string{
	HELLO:        "HELLO",
	WELCOME:      "WELCOME",
	ABORT:        "ABORT",
	CHALLENGE:    "CHALLENGE",
	AUTHENTICATE: "AUTHENTICATE",
	GOODBYE:      "GOODBYE",
	ERROR:        "ERROR",
	PUBLISH:      "PUBLISH",
	PUBLISHED:    "PUBLISHED",
	SUBSCRIBE:    "SUBSCRIBE",
	SUBSCRIBED:   "SUBSCRIBED",
	UNSUBSCRIBE:  "UNSUBSCRIBE",
	UNSUBSCRIBED: "UNSUBSCRIBED",
	EVENT:        "EVENT",
	CALL:         "CALL",
	RESULT:       "RESULT",
	REGISTER:     "REGISTER",
	REGISTERED:   "REGISTERED",
	UNREGISTER:   "UNREGISTER",
	UNREGISTERED: "UNREGISTERED",
	INVOCATION:   "INVOCATION",
	INTERRUPT:    "INTERRUPT",
	YIELD:        "YIELD",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}
