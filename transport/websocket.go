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

// Package transport provides the WebSocket transport used by a WAMP session.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

// FrameHandler callback for each received data frame
type FrameHandler func(payload []byte, binary bool)

// CloseHandler callback when the transport closes. err is nil on local close.
type CloseHandler func(err error)

// Transport a message oriented, bidirectional connection to a WAMP router
type Transport interface {
	// Start begin reading frames. onClose is called exactly once.
	Start(onFrame FrameHandler, onClose CloseHandler) error
	// Send write one frame
	Send(payload []byte, binary bool) error
	// Close close the transport with a close status code
	Close(code int, reason string) error
	// Subprotocol the subprotocol selected during the handshake
	Subprotocol() string
}

// WebSocketParams WebSocket connection parameters
type WebSocketParams struct {
	// URL the router URL, i.e. ws://127.0.0.1:8080/ws
	URL string `validate:"required,url"`
	// Subprotocols the subprotocols to offer, in order of preference
	Subprotocols []string `validate:"required,min=1"`
	// HandshakeTimeout max duration of the opening handshake
	HandshakeTimeout time.Duration `validate:"gte=0"`
	// KeepaliveInterval interval between pings. 0 disables keepalive.
	KeepaliveInterval time.Duration `validate:"gte=0"`
	// MaxMessageSize largest accepted inbound frame in bytes. 0 means no limit.
	MaxMessageSize int64 `validate:"gte=0"`
	// Header additional handshake headers
	Header http.Header
}

// webSocketTransportImpl implements Transport over gorilla/websocket
type webSocketTransportImpl struct {
	common.Component
	conn      *websocket.Conn
	params    WebSocketParams
	sendLock  sync.Mutex
	closeOnce sync.Once
	closing   bool
	started   bool
	keepalive common.IntervalTimer
	opCtxt    context.Context
	opCancel  context.CancelFunc
	wg        *sync.WaitGroup
}

// DialWebSocket open a WebSocket connection to the router
func DialWebSocket(
	ctxt context.Context, params WebSocketParams, wg *sync.WaitGroup,
) (Transport, error) {
	logTags := log.Fields{
		"module": "transport", "component": "websocket", "instance": params.URL,
	}

	validate := validator.New()
	if err := validate.Struct(&params); err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid connection parameters")
		return nil, err
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: params.HandshakeTimeout,
		Subprotocols:     params.Subprotocols,
	}
	conn, resp, err := dialer.DialContext(ctxt, params.URL, params.Header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("handshake failed with HTTP %d: %w", resp.StatusCode, err)
		}
		log.WithError(err).WithFields(logTags).Error("Unable to connect")
		return nil, err
	}
	if params.MaxMessageSize > 0 {
		conn.SetReadLimit(params.MaxMessageSize)
	}
	log.WithFields(logTags).Infof("Connected with subprotocol '%s'", conn.Subprotocol())

	opCtxt, cancel := context.WithCancel(ctxt)
	instance := &webSocketTransportImpl{
		Component: common.Component{LogTags: logTags},
		conn:      conn,
		params:    params,
		opCtxt:    opCtxt,
		opCancel:  cancel,
		wg:        wg,
	}
	if params.KeepaliveInterval > 0 {
		timer, err := common.GetIntervalTimerInstance(
			opCtxt, wg, fmt.Sprintf("%s.keepalive", params.URL),
		)
		if err != nil {
			cancel()
			_ = conn.Close()
			return nil, err
		}
		instance.keepalive = timer
	}
	return instance, nil
}

// Subprotocol the subprotocol selected during the handshake
func (t *webSocketTransportImpl) Subprotocol() string {
	return t.conn.Subprotocol()
}

// Start begin reading frames
func (t *webSocketTransportImpl) Start(onFrame FrameHandler, onClose CloseHandler) error {
	t.sendLock.Lock()
	if t.started {
		t.sendLock.Unlock()
		return fmt.Errorf("transport already started")
	}
	t.started = true
	t.sendLock.Unlock()

	if t.keepalive != nil {
		// Missing two pongs in a row is a lost connection
		deadline := t.params.KeepaliveInterval * 2
		_ = t.conn.SetReadDeadline(time.Now().Add(deadline))
		t.conn.SetPongHandler(func(string) error {
			return t.conn.SetReadDeadline(time.Now().Add(deadline))
		})
		if err := t.keepalive.Start(t.params.KeepaliveInterval, t.ping, false); err != nil {
			log.WithError(err).WithFields(t.LogTags).Error("Unable to start keepalive")
			return err
		}
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer log.WithFields(t.LogTags).Debug("Read loop exiting")
		for {
			msgType, data, err := t.conn.ReadMessage()
			if err != nil {
				t.sendLock.Lock()
				localClose := t.closing
				t.closing = true
				t.sendLock.Unlock()
				t.opCancel()
				_ = t.conn.Close()
				if localClose {
					onClose(nil)
				} else {
					log.WithError(err).WithFields(t.LogTags).Warn("Connection lost")
					onClose(fmt.Errorf("%w: %s", wamp.ErrTransportLost, err.Error()))
				}
				return
			}
			if t.keepalive != nil {
				_ = t.conn.SetReadDeadline(time.Now().Add(t.params.KeepaliveInterval * 2))
			}
			switch msgType {
			case websocket.TextMessage:
				onFrame(data, false)
			case websocket.BinaryMessage:
				onFrame(data, true)
			}
		}
	}()
	return nil
}

// ping send a keepalive ping
func (t *webSocketTransportImpl) ping() error {
	t.sendLock.Lock()
	defer t.sendLock.Unlock()
	if t.closing {
		return nil
	}
	return t.conn.WriteControl(
		websocket.PingMessage, []byte{}, time.Now().Add(t.params.KeepaliveInterval),
	)
}

// Send write one frame
func (t *webSocketTransportImpl) Send(payload []byte, binary bool) error {
	t.sendLock.Lock()
	defer t.sendLock.Unlock()
	if t.closing {
		return wamp.ErrTransportLost
	}
	msgType := websocket.TextMessage
	if binary {
		msgType = websocket.BinaryMessage
	}
	if err := t.conn.WriteMessage(msgType, payload); err != nil {
		log.WithError(err).WithFields(t.LogTags).Error("Frame write failed")
		return fmt.Errorf("%w: %s", wamp.ErrTransportLost, err.Error())
	}
	return nil
}

// Close close the transport
func (t *webSocketTransportImpl) Close(code int, reason string) error {
	var closeErr error
	t.closeOnce.Do(func() {
		log.WithFields(t.LogTags).Infof("Closing with %d '%s'", code, reason)
		t.sendLock.Lock()
		t.closing = true
		if err := t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second),
		); err != nil {
			log.WithError(err).WithFields(t.LogTags).Debug("Close frame write failed")
		}
		t.sendLock.Unlock()
		if t.keepalive != nil {
			_ = t.keepalive.Stop()
		}
		t.opCancel()
		// Unblocks the read loop, which reports the close
		closeErr = t.conn.Close()
	})
	return closeErr
}
