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

package common

import (
	"bytes"
	"testing"

	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestViperConfigParsing(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	validate := validator.New()

	// Case 0: parse config with no defaults in place
	{
		var cfg SystemConfig
		assert.Nil(viper.Unmarshal(&cfg))
		assert.NotNil(validate.Struct(&cfg))
	}

	// Case 1: load the configs
	{
		var cfg SystemConfig
		InstallDefaultConfigValues()
		assert.Nil(viper.Unmarshal(&cfg))
		assert.Nil(validate.Struct(&cfg))
		assert.Equal([]string{"msgpack", "json"}, cfg.Router.Serializers)
		assert.Nil(cfg.Bridge)
		assert.NotNil(cfg.StatusAPI)
	}

	// Case 2: invalid serializer
	{
		config := []byte(`---
router:
  serializers:
    - cbor`)
		viper.SetConfigType("yaml")
		assert.Nil(viper.ReadConfig(bytes.NewBuffer(config)))
		var cfg SystemConfig
		assert.Nil(viper.Unmarshal(&cfg))
		assert.NotNil(validate.Struct(&cfg))
	}

	// Case 3: invalid worker count
	{
		config := []byte(`---
session:
  worker_count: 0`)
		viper.SetConfigType("yaml")
		assert.Nil(viper.ReadConfig(bytes.NewBuffer(config)))
		var cfg SystemConfig
		assert.Nil(viper.Unmarshal(&cfg))
		assert.NotNil(validate.Struct(&cfg))
	}

	// Case 4: invalid auth method
	{
		config := []byte(`---
session:
  auth:
    authmethods:
      - cryptosign`)
		viper.SetConfigType("yaml")
		assert.Nil(viper.ReadConfig(bytes.NewBuffer(config)))
		var cfg SystemConfig
		assert.Nil(viper.Unmarshal(&cfg))
		assert.NotNil(validate.Struct(&cfg))
	}

	// Case 5: bridge without forwarding rules
	{
		InstallBridgeDefaultConfigValues()
		config := []byte(`---
router:
  realm: test`)
		viper.SetConfigType("yaml")
		assert.Nil(viper.ReadConfig(bytes.NewBuffer(config)))
		var cfg SystemConfig
		assert.Nil(viper.Unmarshal(&cfg))
		assert.NotNil(cfg.Bridge)
		assert.NotNil(validate.Struct(&cfg))
	}

	// Case 6: valid bridge
	{
		config := []byte(`---
router:
  url: ws://router.local:9000/ws
  realm: test
session:
  auth:
    authid: alice
    authmethods:
      - ticket
    ticket: secret-ticket
bridge:
  use_jetstream: true
  forwards:
    - topic: com.example
      match: prefix
      subject: wamp.events`)
		viper.SetConfigType("yaml")
		assert.Nil(viper.ReadConfig(bytes.NewBuffer(config)))
		var cfg SystemConfig
		assert.Nil(viper.Unmarshal(&cfg))
		assert.Nil(validate.Struct(&cfg))
		assert.Equal("ws://router.local:9000/ws", cfg.Router.URL)
		assert.Equal("secret-ticket", cfg.Session.Auth.Ticket)
		assert.NotNil(cfg.Bridge)
		assert.True(cfg.Bridge.UseJetStream)
		assert.Len(cfg.Bridge.Forwards, 1)
		assert.Equal("nats://127.0.0.1:4222", cfg.Bridge.NATS.ServerURI)
	}
}
