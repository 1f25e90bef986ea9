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
	"errors"

	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
)

// messages accepted while waiting for WELCOME
var establishmentMessages = map[wamp.MessageType]bool{
	wamp.WELCOME:   true,
	wamp.ABORT:     true,
	wamp.CHALLENGE: true,
}

// messages accepted while the session is established or closing
var sessionMessages = map[wamp.MessageType]bool{
	wamp.GOODBYE:      true,
	wamp.ABORT:        true,
	wamp.ERROR:        true,
	wamp.PUBLISHED:    true,
	wamp.SUBSCRIBED:   true,
	wamp.UNSUBSCRIBED: true,
	wamp.EVENT:        true,
	wamp.RESULT:       true,
	wamp.REGISTERED:   true,
	wamp.UNREGISTERED: true,
	wamp.INVOCATION:   true,
	wamp.INTERRUPT:    true,
}

// onFrame transport frame handler. Runs on the transport read goroutine.
func (s *sessionImpl) onFrame(payload []byte, binary bool) {
	s.lock.Lock()
	failing := s.closeCause != nil
	s.lock.Unlock()
	if failing {
		return
	}

	msgs, err := s.serializer.Deserialize(payload)
	if err != nil {
		var violation *wamp.ProtocolError
		if !errors.As(err, &violation) {
			violation = wamp.NewProtocolError("undecodable frame: %s", err)
		}
		s.protocolViolation(violation)
		return
	}
	for _, msg := range msgs {
		if violation := s.dispatch(msg); violation != nil {
			s.protocolViolation(violation)
			return
		}
	}
}

// checkLegal whether msgType may arrive in the current state
func (s *sessionImpl) checkLegal(msgType wamp.MessageType) *wamp.ProtocolError {
	s.lock.Lock()
	state := s.state
	s.lock.Unlock()
	switch state {
	case StateConnecting:
		if !establishmentMessages[msgType] {
			return wamp.NewProtocolError("%s received before WELCOME", msgType)
		}
	case StateEstablished, StateClosing:
		if !sessionMessages[msgType] {
			return wamp.NewProtocolError("%s received in session", msgType)
		}
	default:
		return wamp.NewProtocolError("%s received without a session", msgType)
	}
	return nil
}

// dispatch route one inbound message
func (s *sessionImpl) dispatch(msg wamp.Message) *wamp.ProtocolError {
	if violation := s.checkLegal(msg.MessageType()); violation != nil {
		return violation
	}
	log.WithFields(s.LogTags).Debugf("Received %s", msg.MessageType())
	switch m := msg.(type) {
	case *wamp.Welcome:
		s.handleWelcome(m)
	case *wamp.Abort:
		s.handleAbort(m)
	case *wamp.Challenge:
		_ = s.submit(challengeTask{msg: m})
	case *wamp.Goodbye:
		s.handleGoodbye(m)
	case *wamp.Error:
		return s.handleError(m)
	case *wamp.Result:
		return s.resolveReply(m.Request, wamp.RESULT, &wamp.CallResult{Args: m.Arguments, Kwargs: m.ArgumentsKw})
	case *wamp.Published:
		return s.resolveReply(m.Request, wamp.PUBLISHED, &wamp.Publication{ID: m.Publication})
	case *wamp.Unsubscribed:
		return s.resolveReply(m.Request, wamp.UNSUBSCRIBED, nil)
	case *wamp.Subscribed:
		return s.handleSubscribed(m)
	case *wamp.Registered:
		return s.handleRegistered(m)
	case *wamp.Unregistered:
		return s.handleUnregistered(m)
	case *wamp.Event:
		s.handleEvent(m)
	case *wamp.Invocation:
		return s.handleInvocation(m)
	case *wamp.Interrupt:
		log.WithFields(s.LogTags).Infof("Ignoring INTERRUPT for invocation %d", m.Request)
	}
	return nil
}

// ===============================================================================
// Session lifecycle

func (s *sessionImpl) handleWelcome(m *wamp.Welcome) {
	s.lock.Lock()
	details := wamp.NewSessionDetails(s.realm, m)
	s.details = details
	s.state = StateEstablished
	cell := s.joinCell
	s.joinCell = nil
	s.lock.Unlock()

	log.WithFields(s.LogTags).Infof("Joined realm '%s' as session %d", details.Realm, details.Session)
	if cell != nil {
		cell.resolve(details, nil)
	}
	if s.params.OnJoin != nil {
		_ = s.submit(hookTask{name: "join", run: func() { s.params.OnJoin(details) }})
	}
}

func (s *sessionImpl) handleAbort(m *wamp.Abort) {
	s.lock.Lock()
	prevState := s.state
	s.state = StateClosed
	joinCell := s.joinCell
	s.joinCell = nil
	leaveCell := s.leaveCell
	s.leaveCell = nil
	pending := s.takePending()
	s.deactivateTables(true)
	s.lock.Unlock()

	closeDetails := wamp.NewCloseDetails(m.Reason, m.Details)
	var args wamp.List
	if closeDetails.Message != "" {
		args = wamp.List{closeDetails.Message}
	}
	abortErr := wamp.NewApplicationError(m.Reason, args, m.Details)
	log.WithFields(s.LogTags).Errorf("Session aborted by router: %s", abortErr)

	if joinCell != nil {
		joinCell.resolve(nil, abortErr)
	}
	if leaveCell != nil {
		leaveCell.resolve(nil, abortErr)
	}
	for _, req := range pending {
		req.cell.resolve(nil, wamp.ErrSessionClosed)
	}
	if prevState != StateClosed {
		s.fireLeave(closeDetails)
	}
}

func (s *sessionImpl) handleGoodbye(m *wamp.Goodbye) {
	s.lock.Lock()
	prevState := s.state
	replyNeeded := !s.goodbyeSent
	s.goodbyeSent = false
	s.state = StateClosed
	leaveCell := s.leaveCell
	s.leaveCell = nil
	pending := s.takePending()
	s.deactivateTables(true)
	s.lock.Unlock()

	if replyNeeded {
		log.WithFields(s.LogTags).Infof("Router closed session with '%s'", m.Reason)
		if err := s.send(&wamp.Goodbye{Details: wamp.Dict{}, Reason: wamp.CloseGoodbyeAndOut}); err != nil {
			log.WithError(err).WithFields(s.LogTags).Error("Failed to reply GOODBYE")
		}
	} else {
		log.WithFields(s.LogTags).Info("Left realm")
	}
	for _, req := range pending {
		req.cell.resolve(nil, wamp.ErrSessionClosed)
	}
	if leaveCell != nil {
		leaveCell.resolve(nil, nil)
	}
	if prevState == StateEstablished || prevState == StateClosing {
		s.fireLeave(wamp.NewCloseDetails(m.Reason, m.Details))
	}
}

// runChallenge answer a CHALLENGE. Failure aborts the join.
func (s *sessionImpl) runChallenge(param interface{}) error {
	task := param.(challengeTask)
	logTags := s.ExtendLogTags(log.Fields{"authmethod": task.msg.AuthMethod})

	var signature string
	var extra wamp.Dict
	err := errNoAuthenticator
	if s.params.Authenticator != nil {
		err = common.RecoverAsError(func() error {
			var authErr error
			signature, extra, authErr = s.params.Authenticator.Authenticate(s.opCtxt, task.msg)
			return authErr
		})
	}
	if err == nil {
		if extra == nil {
			extra = wamp.Dict{}
		}
		if err = s.send(&wamp.Authenticate{Signature: signature, Extra: extra}); err == nil {
			return nil
		}
	}

	log.WithError(err).WithFields(logTags).Error("Unable to answer CHALLENGE")
	if sendErr := s.send(&wamp.Abort{
		Details: wamp.Dict{"message": err.Error()}, Reason: wamp.ErrCannotAuthenticate,
	}); sendErr != nil {
		log.WithError(sendErr).WithFields(logTags).Error("Failed to send ABORT")
	}
	s.lock.Lock()
	var cell *resultCell
	if s.state == StateConnecting {
		s.state = StateClosed
		cell = s.joinCell
		s.joinCell = nil
	}
	s.lock.Unlock()
	if cell != nil {
		cell.resolve(nil, err)
		s.fireLeave(wamp.CloseDetails{Reason: wamp.ErrCannotAuthenticate, Message: err.Error()})
	}
	return nil
}

// runHook run a join / leave hook
func (s *sessionImpl) runHook(param interface{}) error {
	task := param.(hookTask)
	log.WithFields(s.LogTags).Debugf("Running %s hook", task.name)
	task.run()
	return nil
}

// ===============================================================================
// Request replies

// takeReplyLocked remove the pending request matching a reply. Requires the lock.
func (s *sessionImpl) takeReplyLocked(request wamp.ID, kind wamp.MessageType) (*pendingRequest, *wamp.ProtocolError) {
	req, ok := s.pending[request]
	if !ok || req.kind != kind {
		return nil, wamp.NewProtocolError("no pending %s with request ID %d", kind, request)
	}
	delete(s.pending, request)
	return req, nil
}

// resolveReply resolve the request matching a plain reply
func (s *sessionImpl) resolveReply(request wamp.ID, reply wamp.MessageType, value interface{}) *wamp.ProtocolError {
	s.lock.Lock()
	req, violation := s.takeReplyLocked(request, replyKind[reply])
	s.lock.Unlock()
	if violation != nil {
		return violation
	}
	req.cell.resolve(value, nil)
	return nil
}

func (s *sessionImpl) handleError(m *wamp.Error) *wamp.ProtocolError {
	if replyKindOf(m.Type) == 0 {
		return wamp.NewProtocolError("ERROR for unexpected request type %s", m.Type)
	}
	s.lock.Lock()
	req, violation := s.takeReplyLocked(m.Request, m.Type)
	if violation == nil && req.registration != nil {
		if _, tracked := s.registrations[req.registration.id]; tracked {
			req.registration.active = true
		}
	}
	if violation == nil && req.subscription != nil {
		// The router kept the subscription, so the handler is tracked again
		s.addSubscription(req.subscription)
		req.subscription.active = true
	}
	s.lock.Unlock()
	if violation != nil {
		return violation
	}
	reqErr := s.translator.FromWire(m.Error, m.Arguments, m.ArgumentsKw)
	log.WithError(reqErr).WithFields(s.LogTags).Debugf("%s failed", req)
	req.cell.resolve(nil, reqErr)
	return nil
}

// replyKindOf whether requestType expects a reply at all
func replyKindOf(requestType wamp.MessageType) wamp.MessageType {
	for reply, request := range replyKind {
		if request == requestType {
			return reply
		}
	}
	return 0
}

func (s *sessionImpl) handleSubscribed(m *wamp.Subscribed) *wamp.ProtocolError {
	s.lock.Lock()
	req, violation := s.takeReplyLocked(m.Request, wamp.SUBSCRIBE)
	if violation != nil {
		s.lock.Unlock()
		return violation
	}
	sub := &Subscription{
		id: m.Subscription, topic: req.topic, handler: req.handler, active: true, session: s,
	}
	s.addSubscription(sub)
	s.lock.Unlock()
	log.WithFields(s.LogTags).Infof("Subscribed to '%s' as %d", sub.topic, sub.id)
	req.cell.resolve(sub, nil)
	return nil
}

func (s *sessionImpl) handleRegistered(m *wamp.Registered) *wamp.ProtocolError {
	s.lock.Lock()
	if _, exists := s.registrations[m.Registration]; exists {
		s.lock.Unlock()
		return wamp.NewProtocolError("registration %d already exists", m.Registration)
	}
	req, violation := s.takeReplyLocked(m.Request, wamp.REGISTER)
	if violation != nil {
		s.lock.Unlock()
		return violation
	}
	reg := &Registration{
		id: m.Registration, procedure: req.procedure, endpoint: req.endpoint, active: true, session: s,
	}
	s.registrations[reg.id] = reg
	s.lock.Unlock()
	log.WithFields(s.LogTags).Infof("Registered '%s' as %d", reg.procedure, reg.id)
	req.cell.resolve(reg, nil)
	return nil
}

func (s *sessionImpl) handleUnregistered(m *wamp.Unregistered) *wamp.ProtocolError {
	s.lock.Lock()
	req, violation := s.takeReplyLocked(m.Request, wamp.UNREGISTER)
	if violation == nil && req.registration != nil {
		delete(s.registrations, req.registration.id)
	}
	s.lock.Unlock()
	if violation != nil {
		return violation
	}
	req.cell.resolve(nil, nil)
	return nil
}

// ===============================================================================
// Inbound work

func (s *sessionImpl) handleEvent(m *wamp.Event) {
	s.lock.Lock()
	handlers := make([]*Subscription, 0, len(s.subscriptions[m.Subscription]))
	for _, sub := range s.subscriptions[m.Subscription] {
		if sub.active {
			handlers = append(handlers, sub)
		}
	}
	s.lock.Unlock()
	if len(handlers) == 0 {
		log.WithFields(s.LogTags).Warnf("Dropping EVENT for unknown subscription %d", m.Subscription)
		return
	}
	for _, sub := range handlers {
		_ = s.submit(eventTask{subscription: sub, msg: m})
	}
}

func (s *sessionImpl) runEvent(param interface{}) error {
	task := param.(eventTask)
	event := &Event{
		Subscription: task.msg.Subscription,
		Args:         task.msg.Arguments,
		Kwargs:       task.msg.ArgumentsKw,
		Details:      wamp.NewEventDetails(task.subscription.topic, task.msg),
	}
	if err := common.RecoverAsError(func() error {
		return task.subscription.handler(s.opCtxt, event)
	}); err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf(
			"Event handler for '%s' failed", task.subscription.topic,
		)
	}
	return nil
}

func (s *sessionImpl) handleInvocation(m *wamp.Invocation) *wamp.ProtocolError {
	s.lock.Lock()
	reg, ok := s.registrations[m.Registration]
	if !ok {
		s.lock.Unlock()
		return wamp.NewProtocolError("INVOCATION for unknown registration %d", m.Registration)
	}
	if s.invocations[m.Request] {
		s.lock.Unlock()
		return wamp.NewProtocolError("INVOCATION request ID %d already in progress", m.Request)
	}
	s.invocations[m.Request] = true
	s.lock.Unlock()

	if err := s.submit(invocationTask{registration: reg, msg: m}); err != nil {
		s.lock.Lock()
		delete(s.invocations, m.Request)
		s.lock.Unlock()
	}
	return nil
}

func (s *sessionImpl) runInvocation(param interface{}) error {
	task := param.(invocationTask)
	m := task.msg
	logTags := s.ExtendLogTags(log.Fields{"procedure": task.registration.procedure, "request": m.Request})
	defer func() {
		s.lock.Lock()
		delete(s.invocations, m.Request)
		s.lock.Unlock()
	}()

	invocation := &Invocation{
		Request:      m.Request,
		Registration: m.Registration,
		Args:         m.Arguments,
		Kwargs:       m.ArgumentsKw,
		Details:      wamp.NewCallDetails(task.registration.procedure, m),
	}
	var result *wamp.CallResult
	err := common.RecoverAsError(func() error {
		var endpointErr error
		result, endpointErr = task.registration.endpoint(s.opCtxt, invocation)
		return endpointErr
	})

	var reply wamp.Message
	if err == nil {
		yield := &wamp.Yield{Request: m.Request, Options: wamp.Dict{}}
		if result != nil {
			yield.Arguments = result.Args
			yield.ArgumentsKw = result.Kwargs
		}
		reply = yield
	} else {
		log.WithError(err).WithFields(logTags).Error("Endpoint failed")
		uri, args, kwargs := s.translator.ToWire(err)
		reply = &wamp.Error{
			Type:        wamp.INVOCATION,
			Request:     m.Request,
			Details:     wamp.Dict{},
			Error:       uri,
			Arguments:   args,
			ArgumentsKw: kwargs,
		}
	}

	sendErr := s.send(reply)
	var serErr *wamp.SerializationError
	if errors.As(sendErr, &serErr) {
		log.WithError(sendErr).WithFields(logTags).Error("Reply not serializable")
		sendErr = s.send(&wamp.Error{
			Type:      wamp.INVOCATION,
			Request:   m.Request,
			Details:   wamp.Dict{},
			Error:     wamp.ErrInvalidPayload,
			Arguments: wamp.List{serErr.Error()},
		})
	}
	if sendErr != nil {
		log.WithError(sendErr).WithFields(logTags).Error("Failed to reply to INVOCATION")
	}
	return nil
}
