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

package wamp

// Message is one WAMP message. The set of implementations is closed.
type Message interface {
	MessageType() MessageType
}

// Hello [HELLO, Realm|uri, Details|dict]
type Hello struct {
	Realm   URI
	Details Dict
}

// Welcome [WELCOME, Session|id, Details|dict]
type Welcome struct {
	ID      ID
	Details Dict
}

// Abort [ABORT, Details|dict, Reason|uri]
type Abort struct {
	Details Dict
	Reason  URI
}

// Challenge [CHALLENGE, AuthMethod|string, Extra|dict]
type Challenge struct {
	AuthMethod string
	Extra      Dict
}

// Authenticate [AUTHENTICATE, Signature|string, Extra|dict]
type Authenticate struct {
	Signature string
	Extra     Dict
}

// Goodbye [GOODBYE, Details|dict, Reason|uri]
type Goodbye struct {
	Details Dict
	Reason  URI
}

// Error [ERROR, REQUEST.Type|int, REQUEST.Request|id, Details|dict, Error|uri, Arguments|list, ArgumentsKw|dict]
type Error struct {
	Type        MessageType
	Request     ID
	Details     Dict
	Error       URI
	Arguments   List
	ArgumentsKw Dict
}

// Publish [PUBLISH, Request|id, Options|dict, Topic|uri, Arguments|list, ArgumentsKw|dict]
type Publish struct {
	Request     ID
	Options     Dict
	Topic       URI
	Arguments   List
	ArgumentsKw Dict
}

// Published [PUBLISHED, PUBLISH.Request|id, Publication|id]
type Published struct {
	Request     ID
	Publication ID
}

// Subscribe [SUBSCRIBE, Request|id, Options|dict, Topic|uri]
type Subscribe struct {
	Request ID
	Options Dict
	Topic   URI
}

// Subscribed [SUBSCRIBED, SUBSCRIBE.Request|id, Subscription|id]
type Subscribed struct {
	Request      ID
	Subscription ID
}

// Unsubscribe [UNSUBSCRIBE, Request|id, SUBSCRIBED.Subscription|id]
type Unsubscribe struct {
	Request      ID
	Subscription ID
}

// Unsubscribed [UNSUBSCRIBED, UNSUBSCRIBE.Request|id]
type Unsubscribed struct {
	Request ID
}

// Event [EVENT, SUBSCRIBED.Subscription|id, PUBLISHED.Publication|id, Details|dict, Arguments|list, ArgumentsKw|dict]
type Event struct {
	Subscription ID
	Publication  ID
	Details      Dict
	Arguments    List
	ArgumentsKw  Dict
}

// Call [CALL, Request|id, Options|dict, Procedure|uri, Arguments|list, ArgumentsKw|dict]
type Call struct {
	Request     ID
	Options     Dict
	Procedure   URI
	Arguments   List
	ArgumentsKw Dict
}

// Result [RESULT, CALL.Request|id, Details|dict, Arguments|list, ArgumentsKw|dict]
type Result struct {
	Request     ID
	Details     Dict
	Arguments   List
	ArgumentsKw Dict
}

// Register [REGISTER, Request|id, Options|dict, Procedure|uri]
type Register struct {
	Request   ID
	Options   Dict
	Procedure URI
}

// Registered [REGISTERED, REGISTER.Request|id, Registration|id]
type Registered struct {
	Request      ID
	Registration ID
}

// Unregister [UNREGISTER, Request|id, REGISTERED.Registration|id]
type Unregister struct {
	Request      ID
	Registration ID
}

// Unregistered [UNREGISTERED, UNREGISTER.Request|id]
type Unregistered struct {
	Request ID
}

// Invocation [INVOCATION, Request|id, REGISTERED.Registration|id, Details|dict, Arguments|list, ArgumentsKw|dict]
type Invocation struct {
	Request      ID
	Registration ID
	Details      Dict
	Arguments    List
	ArgumentsKw  Dict
}

// Interrupt [INTERRUPT, INVOCATION.Request|id, Options|dict]
type Interrupt struct {
	Request ID
	Options Dict
}

// Yield [YIELD, INVOCATION.Request|id, Options|dict, Arguments|list, ArgumentsKw|dict]
type Yield struct {
	Request     ID
	Options     Dict
	Arguments   List
	ArgumentsKw Dict
}

func (msg *Hello) MessageType() MessageType        { return HELLO }
func (msg *Welcome) MessageType() MessageType      { return WELCOME }
func (msg *Abort) MessageType() MessageType        { return ABORT }
func (msg *Challenge) MessageType() MessageType    { return CHALLENGE }
func (msg *Authenticate) MessageType() MessageType { return AUTHENTICATE }
func (msg *Goodbye) MessageType() MessageType      { return GOODBYE }
func (msg *Error) MessageType() MessageType        { return ERROR }
func (msg *Publish) MessageType() MessageType      { return PUBLISH }
func (msg *Published) MessageType() MessageType    { return PUBLISHED }
func (msg *Subscribe) MessageType() MessageType    { return SUBSCRIBE }
func (msg *Subscribed) MessageType() MessageType   { return SUBSCRIBED }
func (msg *Unsubscribe) MessageType() MessageType  { return UNSUBSCRIBE }
func (msg *Unsubscribed) MessageType() MessageType { return UNSUBSCRIBED }
func (msg *Event) MessageType() MessageType        { return EVENT }
func (msg *Call) MessageType() MessageType         { return CALL }
func (msg *Result) MessageType() MessageType       { return RESULT }
func (msg *Register) MessageType() MessageType     { return REGISTER }
func (msg *Registered) MessageType() MessageType   { return REGISTERED }
func (msg *Unregister) MessageType() MessageType   { return UNREGISTER }
func (msg *Unregistered) MessageType() MessageType { return UNREGISTERED }
func (msg *Invocation) MessageType() MessageType   { return INVOCATION }
func (msg *Interrupt) MessageType() MessageType    { return INTERRUPT }
func (msg *Yield) MessageType() MessageType        { return YIELD }
