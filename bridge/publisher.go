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

// Package bridge forwards WAMP events to NATS subjects.
package bridge

import (
	"context"
	"fmt"

	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/core"
	"github.com/apex/log"
	"github.com/nats-io/nats.go"
)

// MsgIDHeader NATS header carrying the bridge message ID
const MsgIDHeader = "Wamp-Bridge-Msg-ID"

// EventPublisher publishes a bridged event to a NATS subject
type EventPublisher interface {
	// Publish publish payload on subject
	Publish(ctxt context.Context, subject string, msgID string, payload []byte) error
}

// GetEventPublisher define the publisher for a NATS client
//
// With JetStream, Publish waits for the stream ACK. Otherwise it is fire and forget.
func GetEventPublisher(natsClient *core.NatsClient, instance string) (EventPublisher, error) {
	if natsClient == nil {
		return nil, fmt.Errorf("no NATS client given")
	}
	if natsClient.JetStream() != nil {
		return &jetStreamPublisherImpl{
			Component: common.NewComponent("bridge", "js-publisher", instance), nats: natsClient,
		}, nil
	}
	return &natsPublisherImpl{
		Component: common.NewComponent("bridge", "nats-publisher", instance), nats: natsClient,
	}, nil
}

func newBridgeMsg(subject, msgID string, payload []byte) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Header.Set(MsgIDHeader, msgID)
	msg.Data = payload
	return msg
}

// natsPublisherImpl publishes with core NATS
type natsPublisherImpl struct {
	common.Component
	nats *core.NatsClient
}

func (p *natsPublisherImpl) Publish(ctxt context.Context, subject string, msgID string, payload []byte) error {
	logTags := p.ExtendLogTags(log.Fields{"subject": subject, "msg_id": msgID})
	if err := p.nats.Conn().PublishMsg(newBridgeMsg(subject, msgID, payload)); err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to send message")
		return err
	}
	log.WithFields(logTags).Debug("Sent")
	return nil
}

// jetStreamPublisherImpl publishes into JetStream
type jetStreamPublisherImpl struct {
	common.Component
	nats *core.NatsClient
}

func (p *jetStreamPublisherImpl) Publish(ctxt context.Context, subject string, msgID string, payload []byte) error {
	logTags := p.ExtendLogTags(log.Fields{"subject": subject, "msg_id": msgID})
	msg := newBridgeMsg(subject, msgID, payload)
	// Lets the stream drop duplicates
	msg.Header.Set(nats.MsgIdHdr, msgID)
	ack, err := p.nats.JetStream().PublishMsgAsync(msg)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to send message")
		return err
	}
	// Wait for success, failure, or timeout
	select {
	case goodSig, ok := <-ack.Ok():
		if !ok {
			err := fmt.Errorf("reading nats.PubAckFuture OK channel failure")
			log.WithError(err).WithFields(logTags).Errorf("Message send failure")
			return err
		}
		log.WithFields(logTags).Debugf("Sent [%d] to %s", goodSig.Sequence, goodSig.Stream)
		return nil
	case txErr, ok := <-ack.Err():
		if !ok {
			err := fmt.Errorf("reading nats.PubAckFuture error channel failure")
			log.WithError(err).WithFields(logTags).Errorf("Message send failure")
			return err
		}
		return txErr
	case <-ctxt.Done():
		err := ctxt.Err()
		log.WithError(err).WithFields(logTags).Errorf("Message send timed out")
		return err
	}
}
