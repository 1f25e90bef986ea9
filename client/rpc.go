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
	"time"

	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
)

// request send a request and wait for its reply
//
// The request stays pending after a timeout, so a late reply is absorbed.
func (s *sessionImpl) request(
	ctxt context.Context, req *pendingRequest, build func(id wamp.ID) wamp.Message,
) (interface{}, error) {
	s.lock.Lock()
	if s.state != StateEstablished {
		s.lock.Unlock()
		return nil, wamp.ErrSessionClosed
	}
	id := s.ids.Next()
	for s.pending[id] != nil {
		id = s.ids.Next()
	}
	req.id = id
	req.createdAt = time.Now()
	req.cell = newResultCell()
	s.pending[id] = req
	s.lock.Unlock()

	if err := s.send(build(id)); err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Failed to send %s", req)
		s.lock.Lock()
		if s.pending[id] == req {
			delete(s.pending, id)
		}
		s.lock.Unlock()
		return nil, err
	}

	waitCtxt, cancel := s.replyContext(ctxt)
	defer cancel()
	value, err := req.cell.wait(waitCtxt)
	if errors.Is(err, wamp.ErrTimeout) {
		log.WithFields(s.LogTags).Warnf("%s timed out after %s", req, time.Since(req.createdAt))
	}
	return value, err
}

// Call call a procedure
func (s *sessionImpl) Call(
	ctxt context.Context, procedure wamp.URI, args wamp.List, kwargs wamp.Dict, opts wamp.CallOptions,
) (*wamp.CallResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctxt, cancel = context.WithTimeout(ctxt, opts.Timeout)
		defer cancel()
	}
	value, err := s.request(ctxt, &pendingRequest{kind: wamp.CALL, procedure: procedure}, func(id wamp.ID) wamp.Message {
		return &wamp.Call{
			Request: id, Options: opts.ToDict(), Procedure: procedure, Arguments: args, ArgumentsKw: kwargs,
		}
	})
	if err != nil {
		return nil, err
	}
	return value.(*wamp.CallResult), nil
}

// Register register a procedure
func (s *sessionImpl) Register(
	ctxt context.Context, procedure wamp.URI, endpoint Endpoint, opts wamp.RegisterOptions,
) (*Registration, error) {
	if endpoint == nil {
		return nil, fmt.Errorf("no endpoint given for '%s'", procedure)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	req := &pendingRequest{kind: wamp.REGISTER, procedure: procedure, endpoint: endpoint}
	value, err := s.request(ctxt, req, func(id wamp.ID) wamp.Message {
		return &wamp.Register{Request: id, Options: opts.ToDict(), Procedure: procedure}
	})
	if err != nil {
		return nil, err
	}
	return value.(*Registration), nil
}

// unregister remove a registration. The handle goes inactive immediately.
func (s *sessionImpl) unregister(ctxt context.Context, reg *Registration) error {
	s.lock.Lock()
	if !reg.active {
		s.lock.Unlock()
		return wamp.ErrNotActive
	}
	reg.active = false
	s.lock.Unlock()

	_, err := s.request(ctxt, &pendingRequest{kind: wamp.UNREGISTER, registration: reg}, func(id wamp.ID) wamp.Message {
		return &wamp.Unregister{Request: id, Registration: reg.id}
	})
	if err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Unregister of '%s' failed", reg.procedure)
		return err
	}
	log.WithFields(s.LogTags).Infof("Unregistered '%s'", reg.procedure)
	return nil
}
