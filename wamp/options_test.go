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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOptionsConversion(t *testing.T) {
	assert := assert.New(t)

	// Case 0: subscribe options
	{
		assert.Equal(Dict{}, SubscribeOptions{}.ToDict())
		assert.Equal(Dict{}, SubscribeOptions{Match: MatchExact}.ToDict())
		assert.Equal(Dict{"match": "prefix"}, SubscribeOptions{Match: MatchPrefix}.ToDict())
		assert.Nil(SubscribeOptions{Match: MatchWildcard}.Validate())
		assert.NotNil(SubscribeOptions{Match: "regex"}.Validate())
	}

	// Case 1: register options
	{
		opts := RegisterOptions{Match: MatchPrefix, Invoke: "roundrobin", DiscloseCaller: true}
		assert.Nil(opts.Validate())
		assert.Equal(
			Dict{"match": "prefix", "invoke": "roundrobin", "disclose_caller": true}, opts.ToDict(),
		)
		assert.NotNil(RegisterOptions{Invoke: "everyone"}.Validate())
	}

	// Case 2: publish options
	{
		excludeMe := false
		opts := PublishOptions{
			Acknowledge: true, ExcludeMe: &excludeMe, Exclude: []ID{1, 2}, EligibleAuthID: []string{"bob"},
		}
		assert.Nil(opts.Validate())
		assert.Equal(Dict{
			"acknowledge":     true,
			"exclude_me":      false,
			"exclude":         List{ID(1), ID(2)},
			"eligible_authid": List{"bob"},
		}, opts.ToDict())
		assert.Equal(Dict{}, PublishOptions{}.ToDict())
	}

	// Case 3: call options
	{
		opts := CallOptions{Timeout: time.Millisecond * 1500, DiscloseMe: true}
		assert.Nil(opts.Validate())
		assert.Equal(Dict{"timeout": int64(1500), "disclose_me": true}, opts.ToDict())
		assert.NotNil(CallOptions{Timeout: -time.Second}.Validate())
	}
}

func TestDetailsConversion(t *testing.T) {
	assert := assert.New(t)

	// Case 0: session details
	{
		d := NewSessionDetails("realm1", &Welcome{
			ID: 55, Details: Dict{"authid": "alice", "authrole": "user", "authmethod": "ticket"},
		})
		assert.Equal(SessionDetails{
			Realm: "realm1", Session: 55, AuthID: "alice", AuthRole: "user", AuthMethod: "ticket",
		}, d)
	}

	// Case 1: event details
	{
		d := NewEventDetails("com.topic", &Event{
			Subscription: 1, Publication: 2, Details: Dict{"publisher": int64(7), "topic": "com.topic.a"},
		})
		assert.Equal(ID(2), d.Publication)
		assert.NotNil(d.Publisher)
		assert.Equal(ID(7), *d.Publisher)
		assert.Equal(URI("com.topic.a"), d.Topic)
	}

	// Case 2: call details
	{
		d := NewCallDetails("com.add", &Invocation{Request: 1, Registration: 2, Details: Dict{}})
		assert.Nil(d.Caller)
		assert.Equal(URI("com.add"), d.Procedure)
	}

	// Case 3: close details
	{
		d := NewCloseDetails(CloseNormal, Dict{"message": "bye"})
		assert.Equal(CloseDetails{Reason: CloseNormal, Message: "bye"}, d)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	assert := assert.New(t)

	protoErr := NewProtocolError("bad %s", "thing")
	assert.Equal("wamp protocol violation: bad thing", protoErr.Error())
	assert.True(IsFatal(protoErr))
	assert.True(IsFatal(ErrTransportLost))
	assert.False(IsFatal(ErrTimeout))

	appErr := NewApplicationError("com.error", List{"oops"}, nil)
	assert.Equal("com.error: [oops]", appErr.Error())
	assert.False(IsFatal(appErr))

	cause := errors.New("unsupported type")
	serErr := NewSerializationError(cause, "encode %s", "CALL")
	assert.True(errors.Is(serErr, cause))
	assert.Contains(serErr.Error(), "encode CALL")
}
