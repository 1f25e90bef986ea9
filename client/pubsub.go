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
	"fmt"

	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
)

// Publish publish an event
func (s *sessionImpl) Publish(
	ctxt context.Context, topic wamp.URI, args wamp.List, kwargs wamp.Dict, opts wamp.PublishOptions,
) (*wamp.Publication, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	build := func(id wamp.ID) wamp.Message {
		return &wamp.Publish{
			Request: id, Options: opts.ToDict(), Topic: topic, Arguments: args, ArgumentsKw: kwargs,
		}
	}

	if !opts.Acknowledge {
		if s.State() != StateEstablished {
			return nil, wamp.ErrSessionClosed
		}
		return nil, s.send(build(s.ids.Next()))
	}

	value, err := s.request(ctxt, &pendingRequest{kind: wamp.PUBLISH, topic: topic}, build)
	if err != nil {
		return nil, err
	}
	return value.(*wamp.Publication), nil
}

// Subscribe subscribe a handler to a topic
//
// Several handlers may share one router subscription; each gets its own handle.
func (s *sessionImpl) Subscribe(
	ctxt context.Context, topic wamp.URI, handler EventHandler, opts wamp.SubscribeOptions,
) (*Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("no handler given for '%s'", topic)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	req := &pendingRequest{kind: wamp.SUBSCRIBE, topic: topic, handler: handler}
	value, err := s.request(ctxt, req, func(id wamp.ID) wamp.Message {
		return &wamp.Subscribe{Request: id, Options: opts.ToDict(), Topic: topic}
	})
	if err != nil {
		return nil, err
	}
	return value.(*Subscription), nil
}

// unsubscribe remove one handler. UNSUBSCRIBE is sent only for the last one.
func (s *sessionImpl) unsubscribe(ctxt context.Context, sub *Subscription) error {
	s.lock.Lock()
	if !sub.active {
		s.lock.Unlock()
		return wamp.ErrNotActive
	}
	last := s.removeSubscription(sub)
	s.lock.Unlock()
	if !last {
		log.WithFields(s.LogTags).Debugf("Removed one handler of subscription %d", sub.id)
		return nil
	}

	req := &pendingRequest{kind: wamp.UNSUBSCRIBE, topic: sub.topic, subscription: sub}
	_, err := s.request(ctxt, req, func(id wamp.ID) wamp.Message {
		return &wamp.Unsubscribe{Request: id, Subscription: sub.id}
	})
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Unsubscribe from '%s' failed", sub.topic)
		return err
	}
	log.WithFields(s.LogTags).Infof("Unsubscribed from '%s'", sub.topic)
	return nil
}
