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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alwitt/wampc/wamp"
)

// idGenerator produce request IDs, sequential per session, wrapping at 2^53
type idGenerator struct {
	lock sync.Mutex
	last wamp.ID
}

// Next the next request ID, starting at 1
func (g *idGenerator) Next() wamp.ID {
	g.lock.Lock()
	defer g.lock.Unlock()
	if g.last >= wamp.MaxID {
		g.last = 0
	}
	g.last++
	return g.last
}

// resultCell a single assignment result slot
type resultCell struct {
	once  sync.Once
	done  chan struct{}
	value interface{}
	err   error
}

func newResultCell() *resultCell {
	return &resultCell{done: make(chan struct{})}
}

// resolve set the result. Only the first call has any effect.
func (c *resultCell) resolve(value interface{}, err error) bool {
	resolved := false
	c.once.Do(func() {
		c.value = value
		c.err = err
		resolved = true
		close(c.done)
	})
	return resolved
}

// wait block until the cell is resolved, or ctxt is done
func (c *resultCell) wait(ctxt context.Context) (interface{}, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctxt.Done():
		// A result which raced with the deadline still wins
		select {
		case <-c.done:
			return c.value, c.err
		default:
		}
		if errors.Is(ctxt.Err(), context.DeadlineExceeded) {
			return nil, wamp.ErrTimeout
		}
		return nil, ctxt.Err()
	}
}

// pendingRequest a request sent to the router which expects a reply
type pendingRequest struct {
	id        wamp.ID
	kind      wamp.MessageType
	createdAt time.Time
	cell      *resultCell
	// subscribe / register context, used when the reply arrives
	topic     wamp.URI
	handler   EventHandler
	procedure wamp.URI
	endpoint  Endpoint
	// handle being removed by an UNSUBSCRIBE / UNREGISTER
	registration *Registration
	subscription *Subscription
}

func (r *pendingRequest) String() string {
	return fmt.Sprintf("%s[%d]", r.kind, r.id)
}

// replyKind the request kind a success reply resolves
var replyKind = map[wamp.MessageType]wamp.MessageType{
	wamp.RESULT:       wamp.CALL,
	wamp.PUBLISHED:    wamp.PUBLISH,
	wamp.SUBSCRIBED:   wamp.SUBSCRIBE,
	wamp.UNSUBSCRIBED: wamp.UNSUBSCRIBE,
	wamp.REGISTERED:   wamp.REGISTER,
	wamp.UNREGISTERED: wamp.UNREGISTER,
}
