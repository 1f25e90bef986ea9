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
	"context"

	"github.com/alwitt/wampc/wamp"
)

// Endpoint a procedure implementation
//
// Returning an error produces an ERROR reply. Use *wamp.ApplicationError to
// control the error URI and payload, or a type bound with Define.
type Endpoint func(ctxt context.Context, invocation *Invocation) (*wamp.CallResult, error)

// EventHandler an event handler. A returned error is logged.
type EventHandler func(ctxt context.Context, event *Event) error

// Invocation a procedure invocation received from the router
type Invocation struct {
	Request      wamp.ID
	Registration wamp.ID
	Args         wamp.List
	Kwargs       wamp.Dict
	Details      wamp.CallDetails
}

// Event an event received from the router
type Event struct {
	Subscription wamp.ID
	Args         wamp.List
	Kwargs       wamp.Dict
	Details      wamp.EventDetails
}

// Registration handle of a registered procedure
type Registration struct {
	id        wamp.ID
	procedure wamp.URI
	endpoint  Endpoint
	active    bool
	session   *sessionImpl
}

// ID the router assigned registration ID
func (r *Registration) ID() wamp.ID {
	return r.id
}

// Procedure the registered procedure URI
func (r *Registration) Procedure() wamp.URI {
	return r.procedure
}

// Active whether the registration is still in effect
func (r *Registration) Active() bool {
	r.session.lock.Lock()
	defer r.session.lock.Unlock()
	return r.active
}

// Unregister remove the registration from the router
func (r *Registration) Unregister(ctxt context.Context) error {
	return r.session.unregister(ctxt, r)
}

// Subscription handle of one local event handler on a topic
//
// Several local subscriptions may share one router subscription ID.
type Subscription struct {
	id      wamp.ID
	topic   wamp.URI
	handler EventHandler
	active  bool
	session *sessionImpl
}

// ID the router assigned subscription ID
func (s *Subscription) ID() wamp.ID {
	return s.id
}

// Topic the subscribed topic
func (s *Subscription) Topic() wamp.URI {
	return s.topic
}

// Active whether the subscription is still in effect
func (s *Subscription) Active() bool {
	s.session.lock.Lock()
	defer s.session.lock.Unlock()
	return s.active
}

// Unsubscribe remove this handler. The router subscription is only removed
// with the last local handler sharing it.
func (s *Subscription) Unsubscribe(ctxt context.Context) error {
	return s.session.unsubscribe(ctxt, s)
}

// ===============================================================================
// Table maintenance. All of these require the session lock to be held.

// addSubscription track a new local handler under a router subscription ID
func (s *sessionImpl) addSubscription(sub *Subscription) {
	s.subscriptions[sub.id] = append(s.subscriptions[sub.id], sub)
}

// removeSubscription stop tracking a local handler
//
// Returns whether it was the last handler for its router subscription ID.
func (s *sessionImpl) removeSubscription(sub *Subscription) bool {
	handlers := s.subscriptions[sub.id]
	remaining := make([]*Subscription, 0, len(handlers))
	for _, h := range handlers {
		if h != sub {
			remaining = append(remaining, h)
		}
	}
	sub.active = false
	if len(remaining) == 0 {
		delete(s.subscriptions, sub.id)
		return true
	}
	s.subscriptions[sub.id] = remaining
	return false
}

// deactivateTables mark every handle inactive. With clear, the tables are also emptied.
func (s *sessionImpl) deactivateTables(clear bool) {
	for _, reg := range s.registrations {
		reg.active = false
	}
	for _, handlers := range s.subscriptions {
		for _, sub := range handlers {
			sub.active = false
		}
	}
	if clear {
		s.registrations = map[wamp.ID]*Registration{}
		s.subscriptions = map[wamp.ID][]*Subscription{}
	}
	s.invocations = map[wamp.ID]bool{}
}
