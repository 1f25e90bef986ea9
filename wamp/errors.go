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
	"errors"
	"fmt"
)

// Sentinel errors
var (
	// ErrTransportLost the transport closed while a request was outstanding
	ErrTransportLost = errors.New("wamp transport lost")
	// ErrTimeout a request did not receive a reply in time
	ErrTimeout = errors.New("wamp request timed out")
	// ErrSessionClosed the session is not established
	ErrSessionClosed = errors.New("wamp session not established")
	// ErrNotActive the subscription or registration handle is no longer active
	ErrNotActive = errors.New("wamp handle not active")
)

// ProtocolError a violation of the WAMP protocol. Fatal to the session.
type ProtocolError struct {
	Reason string
}

// NewProtocolError define a new ProtocolError
func NewProtocolError(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wamp protocol violation: %s", e.Reason)
}

// ApplicationError a WAMP error identified by URI, with optional payload
type ApplicationError struct {
	URI    URI
	Args   List
	Kwargs Dict
}

// NewApplicationError define a new ApplicationError
func NewApplicationError(uri URI, args List, kwargs Dict) *ApplicationError {
	return &ApplicationError{URI: uri, Args: args, Kwargs: kwargs}
}

func (e *ApplicationError) Error() string {
	if len(e.Args) > 0 {
		return fmt.Sprintf("%s: %v", e.URI, e.Args)
	}
	return string(e.URI)
}

// SerializationError a payload could not be encoded or decoded
//
// Received from a peer, Args holds the positional ERROR arguments. Without a
// message the first argument is the error text.
type SerializationError struct {
	Message string        `mapstructure:"message"`
	Args    []interface{} `mapstructure:"args,omitempty"`
	Cause   error         `mapstructure:"-"`
}

// NewSerializationError define a new SerializationError
func NewSerializationError(cause error, format string, args ...interface{}) *SerializationError {
	return &SerializationError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *SerializationError) Error() string {
	if e.Message == "" && len(e.Args) > 0 {
		return fmt.Sprint(e.Args[0])
	}
	if e.Cause != nil {
		return fmt.Sprintf("wamp serialization failure: %s: %s", e.Message, e.Cause.Error())
	}
	return fmt.Sprintf("wamp serialization failure: %s", e.Message)
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}

// IsFatal whether the error terminates the session
func IsFatal(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr) || errors.Is(err, ErrTransportLost)
}
