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
	"testing"

	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/pbkdf2"
)

func TestTicketAuthenticator(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	uut := TicketAuthenticator{Ticket: "open-sesame"}

	// Case 0: wrong method
	_, _, err := uut.Authenticate(context.Background(), &wamp.Challenge{AuthMethod: "wampcra"})
	assert.NotNil(err)

	// Case 1: correct method
	sig, extra, err := uut.Authenticate(context.Background(), &wamp.Challenge{AuthMethod: "ticket"})
	assert.Nil(err)
	assert.Equal("open-sesame", sig)
	assert.Empty(extra)

	// Case 2: no ticket
	_, _, err = TicketAuthenticator{}.Authenticate(context.Background(), &wamp.Challenge{AuthMethod: "ticket"})
	assert.NotNil(err)
}

func TestCRAAuthenticator(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	challengeStr := `{"authid": "peter", "nonce": "LHRTC9zeOIrt_9U3", "session": 3251278072152162}`
	sign := func(key string) string {
		mac := hmac.New(sha256.New, []byte(key))
		mac.Write([]byte(challengeStr))
		return base64.StdEncoding.EncodeToString(mac.Sum(nil))
	}

	uut := CRAAuthenticator{Secret: "secret123"}

	// Case 0: unsalted
	sig, _, err := uut.Authenticate(context.Background(), &wamp.Challenge{
		AuthMethod: "wampcra", Extra: wamp.Dict{"challenge": challengeStr},
	})
	assert.Nil(err)
	assert.Equal(sign("secret123"), sig)

	// Case 1: salted
	derived := base64.StdEncoding.EncodeToString(
		pbkdf2.Key([]byte("secret123"), []byte("salt123"), 100, 16, sha256.New),
	)
	assert.Equal(derived, DeriveCRAKey("secret123", "salt123", 100, 16))
	sig, _, err = uut.Authenticate(context.Background(), &wamp.Challenge{
		AuthMethod: "wampcra",
		Extra: wamp.Dict{
			"challenge": challengeStr, "salt": "salt123", "iterations": int64(100), "keylen": int64(16),
		},
	})
	assert.Nil(err)
	assert.Equal(sign(derived), sig)

	// Case 2: salted with default parameters
	derived = base64.StdEncoding.EncodeToString(
		pbkdf2.Key([]byte("secret123"), []byte("salt123"), 1000, 32, sha256.New),
	)
	sig, _, err = uut.Authenticate(context.Background(), &wamp.Challenge{
		AuthMethod: "wampcra", Extra: wamp.Dict{"challenge": challengeStr, "salt": "salt123"},
	})
	assert.Nil(err)
	assert.Equal(sign(derived), sig)

	// Case 3: missing challenge
	_, _, err = uut.Authenticate(context.Background(), &wamp.Challenge{AuthMethod: "wampcra", Extra: wamp.Dict{}})
	assert.NotNil(err)
}

func TestNewAuthenticator(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	// Case 0: anonymous only
	assert.Nil(NewAuthenticator(common.AuthConfig{AuthMethods: []string{"anonymous"}}))

	// Case 1: ticket and wampcra
	uut := NewAuthenticator(common.AuthConfig{
		AuthMethods: []string{"anonymous", "ticket", "wampcra"}, Ticket: "t1", Secret: "s1",
	})
	assert.NotNil(uut)
	sig, _, err := uut.Authenticate(context.Background(), &wamp.Challenge{AuthMethod: "ticket"})
	assert.Nil(err)
	assert.Equal("t1", sig)
	sig, _, err = uut.Authenticate(context.Background(), &wamp.Challenge{
		AuthMethod: "wampcra", Extra: wamp.Dict{"challenge": "abc"},
	})
	assert.Nil(err)
	assert.Equal(SignCRAChallenge("s1", "abc"), sig)

	// Case 2: method not configured
	_, _, err = uut.Authenticate(context.Background(), &wamp.Challenge{AuthMethod: "cryptosign"})
	assert.NotNil(err)
}
