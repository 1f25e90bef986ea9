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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"golang.org/x/crypto/pbkdf2"
)

// errNoAuthenticator a CHALLENGE arrived but no Authenticator was provided
var errNoAuthenticator = errors.New("no authenticator configured")

// Authenticator answers a CHALLENGE during session establishment
type Authenticator interface {
	Authenticate(ctxt context.Context, challenge *wamp.Challenge) (string, wamp.Dict, error)
}

// AuthenticatorFunc adapts a function to Authenticator
type AuthenticatorFunc func(ctxt context.Context, challenge *wamp.Challenge) (string, wamp.Dict, error)

// Authenticate answer a CHALLENGE
func (f AuthenticatorFunc) Authenticate(
	ctxt context.Context, challenge *wamp.Challenge,
) (string, wamp.Dict, error) {
	return f(ctxt, challenge)
}

// MethodAuthenticator dispatches a CHALLENGE to the Authenticator of its auth method
type MethodAuthenticator map[string]Authenticator

// Authenticate answer a CHALLENGE
func (m MethodAuthenticator) Authenticate(
	ctxt context.Context, challenge *wamp.Challenge,
) (string, wamp.Dict, error) {
	auth, ok := m[challenge.AuthMethod]
	if !ok {
		return "", nil, fmt.Errorf("no authenticator for auth method '%s'", challenge.AuthMethod)
	}
	return auth.Authenticate(ctxt, challenge)
}

// TicketAuthenticator "ticket" authentication
type TicketAuthenticator struct {
	Ticket string
}

// Authenticate answer a "ticket" CHALLENGE
func (a TicketAuthenticator) Authenticate(
	_ context.Context, challenge *wamp.Challenge,
) (string, wamp.Dict, error) {
	if challenge.AuthMethod != "ticket" {
		return "", nil, fmt.Errorf("ticket authenticator can't answer '%s'", challenge.AuthMethod)
	}
	if a.Ticket == "" {
		return "", nil, fmt.Errorf("no ticket configured")
	}
	return a.Ticket, wamp.Dict{}, nil
}

// CRAAuthenticator "wampcra" challenge-response authentication
type CRAAuthenticator struct {
	Secret string
}

// WAMP-CRA key derivation defaults
const (
	craDefaultIterations = 1000
	craDefaultKeyLen     = 32
)

// DeriveCRAKey derive a salted WAMP-CRA key from a secret
func DeriveCRAKey(secret, salt string, iterations, keyLen int) string {
	if iterations <= 0 {
		iterations = craDefaultIterations
	}
	if keyLen <= 0 {
		keyLen = craDefaultKeyLen
	}
	key := pbkdf2.Key([]byte(secret), []byte(salt), iterations, keyLen, sha256.New)
	return base64.StdEncoding.EncodeToString(key)
}

// SignCRAChallenge compute the WAMP-CRA signature of a challenge string
func SignCRAChallenge(key, challenge string) string {
	mac := hmac.New(sha256.New, []byte(key))
	_, _ = mac.Write([]byte(challenge))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Authenticate answer a "wampcra" CHALLENGE
func (a CRAAuthenticator) Authenticate(
	_ context.Context, challenge *wamp.Challenge,
) (string, wamp.Dict, error) {
	if challenge.AuthMethod != "wampcra" {
		return "", nil, fmt.Errorf("wampcra authenticator can't answer '%s'", challenge.AuthMethod)
	}
	challengeStr, ok := challenge.Extra.String("challenge")
	if !ok {
		return "", nil, fmt.Errorf("wampcra CHALLENGE without challenge string")
	}
	key := a.Secret
	if salt, ok := challenge.Extra.String("salt"); ok && salt != "" {
		iterations, _ := challenge.Extra.ID("iterations")
		keyLen, _ := challenge.Extra.ID("keylen")
		key = DeriveCRAKey(a.Secret, salt, int(iterations), int(keyLen))
	}
	return SignCRAChallenge(key, challengeStr), wamp.Dict{}, nil
}

// NewAuthenticator define the Authenticator for the configured auth methods
//
// Returns nil when no configured method needs a CHALLENGE response.
func NewAuthenticator(config common.AuthConfig) Authenticator {
	result := MethodAuthenticator{}
	for _, method := range config.AuthMethods {
		switch method {
		case "ticket":
			result[method] = TicketAuthenticator{Ticket: config.Ticket}
		case "wampcra":
			result[method] = CRAAuthenticator{Secret: config.Secret}
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
