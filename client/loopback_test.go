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
	"sync"
	"testing"
	"time"

	"github.com/alwitt/wampc/serialize"
	"github.com/alwitt/wampc/transport"
	"github.com/alwitt/wampc/wamp"
	"github.com/stretchr/testify/assert"
)

// loopbackTransport in-memory transport. Frames sent by the session land in sent.
type loopbackTransport struct {
	lock      sync.Mutex
	onFrame   transport.FrameHandler
	onClose   transport.CloseHandler
	sent      chan []byte
	closed    bool
	closeCode int
}

func newLoopbackTransport() *loopbackTransport {
	return &loopbackTransport{sent: make(chan []byte, 256)}
}

func (l *loopbackTransport) Start(onFrame transport.FrameHandler, onClose transport.CloseHandler) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.onFrame = onFrame
	l.onClose = onClose
	return nil
}

func (l *loopbackTransport) Send(payload []byte, binary bool) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return wamp.ErrTransportLost
	}
	frame := make([]byte, len(payload))
	copy(frame, payload)
	l.sent <- frame
	return nil
}

func (l *loopbackTransport) Close(code int, reason string) error {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return nil
	}
	l.closed = true
	l.closeCode = code
	onClose := l.onClose
	l.lock.Unlock()
	go onClose(nil)
	return nil
}

func (l *loopbackTransport) Subprotocol() string {
	return serialize.Subprotocol(serialize.JSON)
}

// drop simulate losing the connection
func (l *loopbackTransport) drop() {
	l.lock.Lock()
	l.closed = true
	onClose := l.onClose
	l.lock.Unlock()
	go onClose(fmt.Errorf("%w: connection reset", wamp.ErrTransportLost))
}

func (l *loopbackTransport) isClosed() (bool, int) {
	l.lock.Lock()
	defer l.lock.Unlock()
	return l.closed, l.closeCode
}

// testRouter plays the router side of a loopback transport
type testRouter struct {
	t    *testing.T
	conn *loopbackTransport
	ser  serialize.Serializer
}

// next wait for the next message sent by the session
func (r *testRouter) next() wamp.Message {
	select {
	case frame := <-r.conn.sent:
		msgs, err := r.ser.Deserialize(frame)
		assert.Nil(r.t, err)
		assert.Len(r.t, msgs, 1)
		return msgs[0]
	case <-time.After(time.Second * 2):
		assert.FailNow(r.t, "no message sent by session")
	}
	return nil
}

// quiet assert nothing is sent for a short while
func (r *testRouter) quiet() {
	select {
	case frame := <-r.conn.sent:
		assert.Failf(r.t, "unexpected message", "%s", string(frame))
	case <-time.After(time.Millisecond * 100):
	}
}

// deliver send a message to the session
func (r *testRouter) deliver(msg wamp.Message) {
	payload, err := r.ser.Serialize(msg)
	assert.Nil(r.t, err)
	r.conn.onFrame(payload, false)
}

// deliverRaw send a raw frame to the session
func (r *testRouter) deliverRaw(payload string) {
	r.conn.onFrame([]byte(payload), false)
}

func testSessionParams() SessionParams {
	return SessionParams{
		JoinTimeout:    time.Second,
		RequestTimeout: time.Second,
		WorkerCount:    4,
		TaskBuffer:     64,
	}
}

// defineTestSession define a session over a loopback transport
func defineTestSession(
	t *testing.T, ctxt context.Context, params SessionParams, wg *sync.WaitGroup,
) (*sessionImpl, *testRouter) {
	conn := newLoopbackTransport()
	ser, err := serialize.New(serialize.JSON)
	assert.Nil(t, err)
	s, err := DefineSession(ctxt, conn, ser, params, wg)
	assert.Nil(t, err)
	return s.(*sessionImpl), &testRouter{t: t, conn: conn, ser: ser}
}

// joinTestSession define a session and join realm1
func joinTestSession(
	t *testing.T, ctxt context.Context, params SessionParams, wg *sync.WaitGroup,
) (*sessionImpl, *testRouter) {
	s, router := defineTestSession(t, ctxt, params, wg)
	joined := make(chan error, 1)
	go func() {
		_, err := s.Join(ctxt, "realm1", nil, "")
		joined <- err
	}()
	hello, ok := router.next().(*wamp.Hello)
	assert.True(t, ok)
	assert.Equal(t, wamp.URI("realm1"), hello.Realm)
	router.deliver(&wamp.Welcome{ID: 42, Details: wamp.Dict{}})
	assert.Nil(t, <-joined)
	assert.Equal(t, StateEstablished, s.State())
	return s, router
}

// shutdownTestSession close the session and wait for every worker
func shutdownTestSession(t *testing.T, s *sessionImpl, cancel context.CancelFunc, wg *sync.WaitGroup) {
	// Skip the GOODBYE exchange, nothing answers it
	s.lock.Lock()
	s.state = StateClosed
	s.lock.Unlock()
	assert.Nil(t, s.Close(wamp.CloseStatusNormal, ""))
	cancel()
	wg.Wait()
}
