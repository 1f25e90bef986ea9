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

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/alwitt/wampc/client"
	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// EventEnvelope the NATS payload of a bridged event
type EventEnvelope struct {
	Topic       string                 `json:"topic"`
	Publication uint64                 `json:"publication"`
	Publisher   *uint64                `json:"publisher,omitempty"`
	Args        []interface{}          `json:"args,omitempty"`
	Kwargs      map[string]interface{} `json:"kwargs,omitempty"`
	ReceivedAt  time.Time              `json:"received_at"`
}

// Subscriber subscribes event handlers to WAMP topics
type Subscriber interface {
	Subscribe(
		ctxt context.Context, topic wamp.URI, handler client.EventHandler, opts wamp.SubscribeOptions,
	) (*client.Subscription, error)
}

// ForwardRule one topic to subject mapping
type ForwardRule struct {
	Topic   wamp.URI `validate:"required"`
	Match   string   `validate:"omitempty,oneof=exact prefix wildcard"`
	Subject string   `validate:"required"`
}

// RulesFromConfig build forwarding rules from configuration
func RulesFromConfig(config []common.BridgeForward) []ForwardRule {
	rules := make([]ForwardRule, len(config))
	for idx, fwd := range config {
		rules[idx] = ForwardRule{Topic: wamp.URI(fwd.Topic), Match: fwd.Match, Subject: fwd.Subject}
	}
	return rules
}

// EventForwarder forwards WAMP events to NATS
type EventForwarder interface {
	// Start subscribe to every configured topic
	Start(ctxt context.Context) error
	// Forwarded number of events forwarded so far
	Forwarded() uint64
}

type eventForwarderImpl struct {
	common.Component
	subscriber Subscriber
	publisher  EventPublisher
	rules      []ForwardRule
	timeout    time.Duration

	lock      sync.Mutex
	started   bool
	forwarded uint64
}

// DefineEventForwarder define a new EventForwarder
//
// timeout bounds each NATS publish.
func DefineEventForwarder(
	subscriber Subscriber, publisher EventPublisher, rules []ForwardRule, timeout time.Duration,
) (EventForwarder, error) {
	component := common.NewComponent("bridge", "event-forwarder", "")
	if len(rules) == 0 {
		return nil, fmt.Errorf("no forwarding rules given")
	}
	validate := validator.New()
	for _, rule := range rules {
		if err := validate.Struct(&rule); err != nil {
			log.WithError(err).WithFields(component.LogTags).Error("Invalid forwarding rule")
			return nil, err
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("publish timeout must be positive")
	}
	return &eventForwarderImpl{
		Component:  component,
		subscriber: subscriber,
		publisher:  publisher,
		rules:      rules,
		timeout:    timeout,
	}, nil
}

// Start subscribe to every configured topic
func (f *eventForwarderImpl) Start(ctxt context.Context) error {
	f.lock.Lock()
	if f.started {
		f.lock.Unlock()
		return fmt.Errorf("event forwarder already started")
	}
	f.started = true
	f.lock.Unlock()

	for _, rule := range f.rules {
		rule := rule
		handler := func(ctxt context.Context, event *client.Event) error {
			return f.forward(ctxt, rule, event)
		}
		if _, err := f.subscriber.Subscribe(
			ctxt, rule.Topic, handler, wamp.SubscribeOptions{Match: rule.Match},
		); err != nil {
			log.WithError(err).WithFields(f.LogTags).Errorf("Unable to subscribe to '%s'", rule.Topic)
			return err
		}
		log.WithFields(f.LogTags).Infof("Forwarding '%s' to '%s'", rule.Topic, rule.Subject)
	}
	return nil
}

// Forwarded number of events forwarded so far
func (f *eventForwarderImpl) Forwarded() uint64 {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.forwarded
}

// forward publish one event to the rule's subject
func (f *eventForwarderImpl) forward(ctxt context.Context, rule ForwardRule, event *client.Event) error {
	envelope := EventEnvelope{
		Topic:       string(event.Details.Topic),
		Publication: uint64(event.Details.Publication),
		Args:        event.Args,
		Kwargs:      event.Kwargs,
		ReceivedAt:  time.Now().UTC(),
	}
	if event.Details.Publisher != nil {
		publisher := uint64(*event.Details.Publisher)
		envelope.Publisher = &publisher
	}
	payload, err := json.Marshal(&envelope)
	if err != nil {
		log.WithError(err).WithFields(f.LogTags).Errorf(
			"Unable to encode event %d from '%s'", envelope.Publication, envelope.Topic,
		)
		return err
	}

	msgID := uuid.New().String()
	pubCtxt, cancel := context.WithTimeout(ctxt, f.timeout)
	defer cancel()
	if err := f.publisher.Publish(pubCtxt, rule.Subject, msgID, payload); err != nil {
		log.WithError(err).WithFields(f.LogTags).Errorf(
			"Unable to forward event %d to '%s'", envelope.Publication, rule.Subject,
		)
		return err
	}
	f.lock.Lock()
	f.forwarded++
	f.lock.Unlock()
	return nil
}
