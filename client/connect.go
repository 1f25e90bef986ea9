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
	"sync"
	"time"

	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/serialize"
	"github.com/alwitt/wampc/transport"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
)

// SessionParamsFromConfig build session parameters from configuration
func SessionParamsFromConfig(config common.SessionConfig) SessionParams {
	return SessionParams{
		JoinTimeout:    time.Second * time.Duration(config.JoinTimeout),
		RequestTimeout: time.Second * time.Duration(config.RequestTimeout),
		WorkerCount:    config.WorkerCount,
		TaskBuffer:     config.TaskBuffer,
		Authenticator:  NewAuthenticator(config.Auth),
	}
}

// ConnectWebSocket dial the router and define a session over the connection
//
// The serializer is picked from the subprotocol the router selected. The
// returned session is not yet joined.
func ConnectWebSocket(
	ctxt context.Context,
	router common.RouterConfig,
	params SessionParams,
	wg *sync.WaitGroup,
) (Session, error) {
	logTags := log.Fields{"module": "client", "component": "connect", "instance": router.URL}

	serializers, err := serialize.NewSet(router.Serializers...)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid serializer set")
		return nil, err
	}

	conn, err := transport.DialWebSocket(ctxt, transport.WebSocketParams{
		URL:               router.URL,
		Subprotocols:      serializers.Subprotocols(),
		HandshakeTimeout:  time.Second * time.Duration(router.HandshakeTimeout),
		KeepaliveInterval: time.Second * time.Duration(router.KeepaliveInterval),
		MaxMessageSize:    router.MaxMessageSize,
	}, wg)
	if err != nil {
		return nil, err
	}

	serializer, err := serializers.Negotiated(conn.Subprotocol(), router.StrictNegotiation)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Subprotocol negotiation failed")
		_ = conn.Close(wamp.CloseStatusProtocolError, "unsupported subprotocol")
		return nil, err
	}

	session, err := DefineSession(ctxt, conn, serializer, params, wg)
	if err != nil {
		_ = conn.Close(wamp.CloseStatusInternalError, "session setup failed")
		return nil, err
	}
	return session, nil
}
