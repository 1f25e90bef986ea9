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

import (
	"time"

	"github.com/go-playground/validator/v10"
)

var optionValidator = validator.New()

// Subscription / registration match policies
const (
	MatchExact    = "exact"
	MatchPrefix   = "prefix"
	MatchWildcard = "wildcard"
)

// SubscribeOptions options for SUBSCRIBE
type SubscribeOptions struct {
	// Match is the topic match policy. Empty means exact.
	Match string `validate:"omitempty,oneof=exact prefix wildcard"`
}

// Validate validate the options
func (o SubscribeOptions) Validate() error {
	return optionValidator.Struct(&o)
}

// ToDict convert to the SUBSCRIBE.Options dictionary
func (o SubscribeOptions) ToDict() Dict {
	d := Dict{}
	if o.Match != "" && o.Match != MatchExact {
		d["match"] = o.Match
	}
	return d
}

// RegisterOptions options for REGISTER
type RegisterOptions struct {
	// Match is the procedure match policy. Empty means exact.
	Match string `validate:"omitempty,oneof=exact prefix wildcard"`
	// Invoke is the shared registration invocation policy
	Invoke string `validate:"omitempty,oneof=single roundrobin random first last"`
	// DiscloseCaller request the dealer to disclose the caller
	DiscloseCaller bool
}

// Validate validate the options
func (o RegisterOptions) Validate() error {
	return optionValidator.Struct(&o)
}

// ToDict convert to the REGISTER.Options dictionary
func (o RegisterOptions) ToDict() Dict {
	d := Dict{}
	if o.Match != "" && o.Match != MatchExact {
		d["match"] = o.Match
	}
	if o.Invoke != "" {
		d["invoke"] = o.Invoke
	}
	if o.DiscloseCaller {
		d["disclose_caller"] = true
	}
	return d
}

// PublishOptions options for PUBLISH
type PublishOptions struct {
	// Acknowledge request a PUBLISHED reply from the broker
	Acknowledge bool
	// ExcludeMe whether the publisher is excluded from receiving the event. nil
	// leaves the broker default.
	ExcludeMe *bool
	// Exclude sessions to exclude
	Exclude []ID
	// Eligible sessions allowed to receive
	Eligible []ID
	// ExcludeAuthID authids to exclude
	ExcludeAuthID []string
	// EligibleAuthID authids allowed to receive
	EligibleAuthID []string
	// DiscloseMe request the broker to disclose the publisher
	DiscloseMe bool
}

// Validate validate the options
func (o PublishOptions) Validate() error {
	return optionValidator.Struct(&o)
}

func idList(ids []ID) List {
	l := make(List, len(ids))
	for i, id := range ids {
		l[i] = id
	}
	return l
}

func strList(s []string) List {
	l := make(List, len(s))
	for i, v := range s {
		l[i] = v
	}
	return l
}

// ToDict convert to the PUBLISH.Options dictionary
func (o PublishOptions) ToDict() Dict {
	d := Dict{}
	if o.Acknowledge {
		d["acknowledge"] = true
	}
	if o.ExcludeMe != nil {
		d["exclude_me"] = *o.ExcludeMe
	}
	if len(o.Exclude) > 0 {
		d["exclude"] = idList(o.Exclude)
	}
	if len(o.Eligible) > 0 {
		d["eligible"] = idList(o.Eligible)
	}
	if len(o.ExcludeAuthID) > 0 {
		d["exclude_authid"] = strList(o.ExcludeAuthID)
	}
	if len(o.EligibleAuthID) > 0 {
		d["eligible_authid"] = strList(o.EligibleAuthID)
	}
	if o.DiscloseMe {
		d["disclose_me"] = true
	}
	return d
}

// CallOptions options for CALL
type CallOptions struct {
	// Timeout if positive, is sent to the dealer and bounds the local wait
	Timeout time.Duration `validate:"gte=0"`
	// DiscloseMe request the dealer to disclose the caller
	DiscloseMe bool
}

// Validate validate the options
func (o CallOptions) Validate() error {
	return optionValidator.Struct(&o)
}

// ToDict convert to the CALL.Options dictionary
func (o CallOptions) ToDict() Dict {
	d := Dict{}
	if o.Timeout > 0 {
		d["timeout"] = o.Timeout.Milliseconds()
	}
	if o.DiscloseMe {
		d["disclose_me"] = true
	}
	return d
}

// ===============================================================================
// Details

// SessionDetails the attributes of an established session
type SessionDetails struct {
	Realm        URI    `json:"realm"`
	Session      ID     `json:"session"`
	AuthID       string `json:"authid,omitempty"`
	AuthRole     string `json:"authrole,omitempty"`
	AuthMethod   string `json:"authmethod,omitempty"`
	AuthProvider string `json:"authprovider,omitempty"`
}

// NewSessionDetails build SessionDetails from a WELCOME
func NewSessionDetails(realm URI, welcome *Welcome) SessionDetails {
	d := SessionDetails{Realm: realm, Session: welcome.ID}
	d.AuthID, _ = welcome.Details.String("authid")
	d.AuthRole, _ = welcome.Details.String("authrole")
	d.AuthMethod, _ = welcome.Details.String("authmethod")
	d.AuthProvider, _ = welcome.Details.String("authprovider")
	return d
}

// CloseDetails why a session ended
type CloseDetails struct {
	Reason  URI    `json:"reason"`
	Message string `json:"message,omitempty"`
}

// NewCloseDetails build CloseDetails from ABORT / GOODBYE fields
func NewCloseDetails(reason URI, details Dict) CloseDetails {
	msg, _ := details.String("message")
	return CloseDetails{Reason: reason, Message: msg}
}

// EventDetails the attributes of a received EVENT
type EventDetails struct {
	Publication ID
	Publisher   *ID
	Topic       URI
}

// NewEventDetails build EventDetails from an EVENT
func NewEventDetails(topic URI, event *Event) EventDetails {
	d := EventDetails{Publication: event.Publication, Topic: topic}
	if pub, ok := event.Details.ID("publisher"); ok {
		d.Publisher = &pub
	}
	// Pattern based subscriptions report the concrete topic
	if t, ok := event.Details.String("topic"); ok {
		d.Topic = URI(t)
	}
	return d
}

// CallDetails the attributes of a received INVOCATION
type CallDetails struct {
	Caller         *ID
	CallerAuthID   string
	CallerAuthRole string
	Procedure      URI
}

// NewCallDetails build CallDetails from an INVOCATION
func NewCallDetails(procedure URI, invocation *Invocation) CallDetails {
	d := CallDetails{Procedure: procedure}
	if caller, ok := invocation.Details.ID("caller"); ok {
		d.Caller = &caller
	}
	d.CallerAuthID, _ = invocation.Details.String("caller_authid")
	d.CallerAuthRole, _ = invocation.Details.String("caller_authrole")
	if p, ok := invocation.Details.String("procedure"); ok {
		d.Procedure = URI(p)
	}
	return d
}

// CallResult the payload returned by a procedure
type CallResult struct {
	Args   List
	Kwargs Dict
}

// Publication the acknowledgement of a PUBLISH
type Publication struct {
	ID ID
}
