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

// Package client implements a WAMP v2 client session: session establishment,
// request correlation, subscription / registration tracking, and dispatch of
// invocations and events to user handlers on a bounded worker pool.
package client

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/serialize"
	"github.com/alwitt/wampc/transport"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
)

// clientAgent the agent string announced in HELLO
const clientAgent = "wampc"

// CloseTransportLost close reason reported to OnLeave when the transport drops
const CloseTransportLost wamp.URI = "wamp.close.transport_lost"

// SessionState the session lifecycle state
type SessionState int

// Session states
const (
	StateClosed SessionState = iota
	StateConnecting
	StateEstablished
	StateClosing
)

func (s SessionState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateEstablished:
		return "established"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// JoinHook called once the session is established
type JoinHook func(details wamp.SessionDetails)

// LeaveHook called once an established session ends
type LeaveHook func(details wamp.CloseDetails)

// SessionParams session parameters
type SessionParams struct {
	// JoinTimeout max duration to wait for WELCOME
	JoinTimeout time.Duration `validate:"gt=0"`
	// RequestTimeout default max duration to wait for a reply
	RequestTimeout time.Duration `validate:"gt=0"`
	// WorkerCount number of workers running handlers
	WorkerCount int `validate:"gte=1"`
	// TaskBuffer size of the queue in front of the workers
	TaskBuffer int `validate:"gte=0"`
	// Authenticator answers CHALLENGE. Optional.
	Authenticator Authenticator
	// OnJoin optional join hook
	OnJoin JoinHook
	// OnLeave optional leave hook
	OnLeave LeaveHook
}

// Session a WAMP client session over one transport
type Session interface {
	// Join join a realm. Blocks until WELCOME, ABORT, or the join timeout.
	Join(ctxt context.Context, realm wamp.URI, authmethods []string, authid string) (wamp.SessionDetails, error)
	// Leave leave the realm with GOODBYE, keeping the transport open
	Leave(ctxt context.Context, reason wamp.URI) error
	// Close leave the realm if joined, then close the transport
	Close(code int, reason string) error

	// Call call a procedure
	Call(
		ctxt context.Context, procedure wamp.URI, args wamp.List, kwargs wamp.Dict, opts wamp.CallOptions,
	) (*wamp.CallResult, error)
	// Register register a procedure
	Register(
		ctxt context.Context, procedure wamp.URI, endpoint Endpoint, opts wamp.RegisterOptions,
	) (*Registration, error)
	// Publish publish an event. Returns the publication only when acknowledged.
	Publish(
		ctxt context.Context, topic wamp.URI, args wamp.List, kwargs wamp.Dict, opts wamp.PublishOptions,
	) (*wamp.Publication, error)
	// Subscribe subscribe a handler to a topic
	Subscribe(
		ctxt context.Context, topic wamp.URI, handler EventHandler, opts wamp.SubscribeOptions,
	) (*Subscription, error)

	// Define bind an error type to an error URI. Should be called before Join.
	Define(prototype error, uri wamp.URI) error

	// State the current session state
	State() SessionState
	// Details the session details, if established
	Details() (wamp.SessionDetails, bool)
	// Done closed once the transport has closed
	Done() <-chan struct{}
}

// task parameters processed by the worker pool
type invocationTask struct {
	registration *Registration
	msg          *wamp.Invocation
}

type eventTask struct {
	subscription *Subscription
	msg          *wamp.Event
}

type challengeTask struct {
	msg *wamp.Challenge
}

type hookTask struct {
	name string
	run  func()
}

// sessionImpl implements Session
type sessionImpl struct {
	common.Component
	transport  transport.Transport
	serializer serialize.Serializer
	params     SessionParams
	translator *ErrorTranslator
	ids        idGenerator
	workers    common.TaskProcessor

	// lock guards everything below
	lock            sync.Mutex
	state           SessionState
	realm           wamp.URI
	details         wamp.SessionDetails
	joinCell        *resultCell
	leaveCell       *resultCell
	goodbyeSent     bool
	transportClosed bool
	closeCause      error
	pending         map[wamp.ID]*pendingRequest
	registrations   map[wamp.ID]*Registration
	subscriptions   map[wamp.ID][]*Subscription
	invocations     map[wamp.ID]bool

	done      chan struct{}
	closeOnce sync.Once
	opCtxt    context.Context
	opCancel  context.CancelFunc
}

// DefineSession define a session over an open transport
//
// The transport is started immediately. The session begins Closed; call Join.
func DefineSession(
	ctxt context.Context,
	conn transport.Transport,
	serializer serialize.Serializer,
	params SessionParams,
	wg *sync.WaitGroup,
) (Session, error) {
	component := common.NewComponent("client", "session", "")
	validate := validator.New()
	if err := validate.Struct(&params); err != nil {
		log.WithError(err).WithFields(component.LogTags).Error("Invalid session parameters")
		return nil, err
	}

	opCtxt, cancel := context.WithCancel(ctxt)
	workers, err := common.GetNewTaskPoolProcessorInstance(
		opCtxt,
		fmt.Sprintf("session.%s", component.LogTags["instance"]),
		params.TaskBuffer,
		params.WorkerCount,
	)
	if err != nil {
		cancel()
		log.WithError(err).WithFields(component.LogTags).Error("Unable to define worker pool")
		return nil, err
	}

	instance := &sessionImpl{
		Component:     component,
		transport:     conn,
		serializer:    serializer,
		params:        params,
		translator:    NewErrorTranslator(),
		workers:       workers,
		state:         StateClosed,
		pending:       map[wamp.ID]*pendingRequest{},
		registrations: map[wamp.ID]*Registration{},
		subscriptions: map[wamp.ID][]*Subscription{},
		invocations:   map[wamp.ID]bool{},
		done:          make(chan struct{}),
		opCtxt:        opCtxt,
		opCancel:      cancel,
	}

	if err := workers.SetTaskExecutionMap(map[reflect.Type]common.TaskHandler{
		reflect.TypeOf(invocationTask{}): instance.runInvocation,
		reflect.TypeOf(eventTask{}):      instance.runEvent,
		reflect.TypeOf(challengeTask{}):  instance.runChallenge,
		reflect.TypeOf(hookTask{}):       instance.runHook,
	}); err != nil {
		cancel()
		return nil, err
	}
	if err := workers.StartEventLoop(wg); err != nil {
		cancel()
		return nil, err
	}
	if err := conn.Start(instance.onFrame, instance.onClose); err != nil {
		log.WithError(err).WithFields(component.LogTags).Error("Unable to start transport")
		_ = workers.StopEventLoop()
		cancel()
		return nil, err
	}
	log.WithFields(component.LogTags).Infof(
		"Session defined with serializer '%s'", serializer.ID(),
	)
	return instance, nil
}

// ===============================================================================
// Accessors

// State the current session state
func (s *sessionImpl) State() SessionState {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Details the session details, if established
func (s *sessionImpl) Details() (wamp.SessionDetails, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.details, s.state == StateEstablished
}

// Done closed once the transport has closed
func (s *sessionImpl) Done() <-chan struct{} {
	return s.done
}

// Define bind an error type to an error URI
func (s *sessionImpl) Define(prototype error, uri wamp.URI) error {
	return s.translator.Define(prototype, uri)
}

// ===============================================================================
// Session establishment

// Join join a realm
func (s *sessionImpl) Join(
	ctxt context.Context, realm wamp.URI, authmethods []string, authid string,
) (wamp.SessionDetails, error) {
	s.lock.Lock()
	if s.transportClosed {
		s.lock.Unlock()
		return wamp.SessionDetails{}, wamp.ErrTransportLost
	}
	var cell *resultCell
	switch s.state {
	case StateEstablished, StateClosing:
		current := s.realm
		s.lock.Unlock()
		return wamp.SessionDetails{}, fmt.Errorf("session already joined to realm '%s'", current)
	case StateConnecting:
		current := s.realm
		cell = s.joinCell
		s.lock.Unlock()
		if current != realm {
			return wamp.SessionDetails{}, fmt.Errorf("session is joining realm '%s'", current)
		}
		log.WithFields(s.LogTags).Debugf("Waiting on in-progress join of '%s'", realm)
	default:
		s.state = StateConnecting
		s.realm = realm
		s.goodbyeSent = false
		cell = newResultCell()
		s.joinCell = cell
		s.lock.Unlock()

		details := wamp.Dict{"roles": wamp.ClientRoles(), "agent": clientAgent}
		if len(authmethods) > 0 {
			methods := make(wamp.List, len(authmethods))
			for i, m := range authmethods {
				methods[i] = m
			}
			details["authmethods"] = methods
		}
		if authid != "" {
			details["authid"] = authid
		}
		log.WithFields(s.LogTags).Infof("Joining realm '%s'", realm)
		if err := s.send(&wamp.Hello{Realm: realm, Details: details}); err != nil {
			log.WithError(err).WithFields(s.LogTags).Error("Failed to send HELLO")
			s.lock.Lock()
			if s.joinCell == cell {
				s.joinCell = nil
				s.state = StateClosed
			}
			s.lock.Unlock()
			cell.resolve(nil, err)
			return wamp.SessionDetails{}, err
		}
	}

	waitCtxt, cancel := context.WithTimeout(ctxt, s.params.JoinTimeout)
	defer cancel()
	value, err := cell.wait(waitCtxt)
	if err != nil {
		if errors.Is(err, wamp.ErrTimeout) {
			log.WithFields(s.LogTags).Errorf("Join of '%s' timed out", realm)
			s.failSession(err, wamp.CloseStatusInternalError, "join timed out")
		} else {
			log.WithError(err).WithFields(s.LogTags).Errorf("Join of '%s' failed", realm)
		}
		return wamp.SessionDetails{}, err
	}
	return value.(wamp.SessionDetails), nil
}

// Leave leave the realm
func (s *sessionImpl) Leave(ctxt context.Context, reason wamp.URI) error {
	s.lock.Lock()
	if s.state != StateEstablished {
		s.lock.Unlock()
		return wamp.ErrSessionClosed
	}
	s.state = StateClosing
	s.goodbyeSent = true
	cell := newResultCell()
	s.leaveCell = cell
	s.lock.Unlock()

	log.WithFields(s.LogTags).Infof("Leaving realm with '%s'", reason)
	if err := s.send(&wamp.Goodbye{Details: wamp.Dict{}, Reason: reason}); err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Failed to send GOODBYE")
		return err
	}
	waitCtxt, cancel := s.replyContext(ctxt)
	defer cancel()
	_, err := cell.wait(waitCtxt)
	return err
}

// Close leave the realm if joined, then close the transport
func (s *sessionImpl) Close(code int, reason string) error {
	var closeErr error
	s.closeOnce.Do(func() {
		if s.State() == StateEstablished {
			ctxt, cancel := context.WithTimeout(context.Background(), s.params.RequestTimeout)
			if err := s.Leave(ctxt, wamp.CloseSystemShutdown); err != nil {
				log.WithError(err).WithFields(s.LogTags).Warn("GOODBYE not acknowledged")
			}
			cancel()
		}
		s.lock.Lock()
		if s.closeCause == nil {
			s.closeCause = wamp.ErrSessionClosed
		}
		s.lock.Unlock()
		closeErr = s.transport.Close(code, reason)
		select {
		case <-s.done:
		case <-time.After(s.params.RequestTimeout):
			log.WithFields(s.LogTags).Error("Transport did not report close")
		}
		_ = s.workers.StopEventLoop()
		s.opCancel()
	})
	return closeErr
}

// ===============================================================================
// Support

// send serialize and write one message
func (s *sessionImpl) send(msg wamp.Message) error {
	payload, err := s.serializer.Serialize(msg)
	if err != nil {
		return err
	}
	return s.transport.Send(payload, s.serializer.Binary())
}

// submit queue a task on the worker pool
func (s *sessionImpl) submit(task interface{}) error {
	if err := s.workers.Submit(s.opCtxt, task); err != nil {
		log.WithError(err).WithFields(s.LogTags).Errorf("Unable to submit %T", task)
		return err
	}
	return nil
}

// replyContext apply the default request timeout when ctxt has no deadline
func (s *sessionImpl) replyContext(ctxt context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctxt.Deadline(); ok {
		return context.WithCancel(ctxt)
	}
	return context.WithTimeout(ctxt, s.params.RequestTimeout)
}

// failSession close the transport because of cause. Teardown follows in onClose.
func (s *sessionImpl) failSession(cause error, code int, reason string) {
	s.lock.Lock()
	if s.closeCause == nil {
		s.closeCause = cause
	}
	s.lock.Unlock()
	if err := s.transport.Close(code, reason); err != nil {
		log.WithError(err).WithFields(s.LogTags).Error("Transport close failed")
	}
}

// protocolViolation abort the session and close the transport
func (s *sessionImpl) protocolViolation(violation *wamp.ProtocolError) {
	log.WithError(violation).WithFields(s.LogTags).Error("Aborting session")
	if err := s.send(&wamp.Abort{
		Details: wamp.Dict{"message": violation.Reason}, Reason: wamp.ErrProtocolViolation,
	}); err != nil {
		log.WithError(err).WithFields(s.LogTags).Debug("Failed to send ABORT")
	}
	s.failSession(violation, wamp.CloseStatusProtocolError, "protocol violation")
}

// takePending remove and return every pending request. Requires the lock.
func (s *sessionImpl) takePending() map[wamp.ID]*pendingRequest {
	pending := s.pending
	s.pending = map[wamp.ID]*pendingRequest{}
	return pending
}

// fireLeave run the leave hook on the worker pool
func (s *sessionImpl) fireLeave(details wamp.CloseDetails) {
	if s.params.OnLeave == nil {
		return
	}
	_ = s.submit(hookTask{name: "leave", run: func() { s.params.OnLeave(details) }})
}

// onClose transport closed. Fails everything outstanding.
func (s *sessionImpl) onClose(err error) {
	s.lock.Lock()
	cause := s.closeCause
	if cause == nil {
		if err != nil {
			cause = err
		} else {
			cause = wamp.ErrTransportLost
		}
		s.closeCause = cause
	}
	prevState := s.state
	s.state = StateClosed
	s.transportClosed = true
	pending := s.takePending()
	joinCell := s.joinCell
	s.joinCell = nil
	leaveCell := s.leaveCell
	s.leaveCell = nil
	s.deactivateTables(false)
	s.lock.Unlock()

	log.WithError(cause).WithFields(s.LogTags).Infof(
		"Transport closed in state %s with %d pending requests", prevState, len(pending),
	)
	for _, req := range pending {
		req.cell.resolve(nil, cause)
	}
	if joinCell != nil {
		joinCell.resolve(nil, cause)
	}
	if leaveCell != nil {
		leaveCell.resolve(nil, cause)
	}
	close(s.done)

	// No more frames will arrive, so the hook runs here directly
	if s.params.OnLeave != nil && (prevState == StateEstablished || prevState == StateClosing) {
		details := wamp.CloseDetails{Reason: CloseTransportLost, Message: cause.Error()}
		if errors.Is(cause, wamp.ErrSessionClosed) {
			details.Reason = wamp.CloseNormal
		}
		if hookErr := common.RecoverAsError(func() error {
			s.params.OnLeave(details)
			return nil
		}); hookErr != nil {
			log.WithError(hookErr).WithFields(s.LogTags).Error("Leave hook failed")
		}
	}
}
