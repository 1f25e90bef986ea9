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

package apis

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alwitt/wampc/client"
	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

type fakeSessionMonitor struct {
	lock    sync.Mutex
	state   client.SessionState
	details wamp.SessionDetails
}

func (m *fakeSessionMonitor) State() client.SessionState {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

func (m *fakeSessionMonitor) Details() (wamp.SessionDetails, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.details, m.state == client.StateEstablished
}

func (m *fakeSessionMonitor) set(state client.SessionState) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.state = state
}

type fakeForwardCounter uint64

func (c fakeForwardCounter) Forwarded() uint64 {
	return uint64(c)
}

func TestStatusAPI(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	monitor := &fakeSessionMonitor{
		state:   client.StateConnecting,
		details: wamp.SessionDetails{Realm: "realm1", Session: 1234, AuthRole: "user"},
	}
	uut, err := GetAPIRestStatusHandler(monitor, fakeForwardCounter(12), &common.HTTPConfig{
		Logging: common.HTTPRequestLogging{RequestIDHeader: "Wampc-Request-ID"},
	})
	assert.Nil(err)
	router := DefineStatusRouter(uut, "/")

	get := func(path string) *httptest.ResponseRecorder {
		req, err := http.NewRequest("GET", path, nil)
		assert.Nil(err)
		respRecorder := httptest.NewRecorder()
		router.ServeHTTP(respRecorder, req)
		return respRecorder
	}

	// Case 0: alive
	assert.Equal(http.StatusOK, get("/v1/alive").Code)

	// Case 1: not ready while connecting
	assert.Equal(http.StatusInternalServerError, get("/v1/ready").Code)

	// Case 2: session status while connecting
	{
		resp := get("/v1/session")
		assert.Equal(http.StatusOK, resp.Code)
		var msg APIRestRespSessionStatus
		assert.Nil(json.Unmarshal(resp.Body.Bytes(), &msg))
		assert.True(msg.Success)
		assert.Equal("connecting", msg.State)
		assert.Nil(msg.Details)
		assert.NotNil(msg.ForwardedEvents)
		assert.Equal(uint64(12), *msg.ForwardedEvents)
	}

	// Case 3: established
	monitor.set(client.StateEstablished)
	assert.Equal(http.StatusOK, get("/v1/ready").Code)
	{
		resp := get("/v1/session")
		assert.Equal(http.StatusOK, resp.Code)
		var msg APIRestRespSessionStatus
		assert.Nil(json.Unmarshal(resp.Body.Bytes(), &msg))
		assert.Equal("established", msg.State)
		assert.NotNil(msg.Details)
		assert.Equal(wamp.ID(1234), msg.Details.Session)
		assert.Equal("user", msg.Details.AuthRole)
	}

	// Case 4: closed again
	monitor.set(client.StateClosed)
	assert.Equal(http.StatusInternalServerError, get("/v1/ready").Code)

	// Case 5: unknown path and method
	assert.Equal(http.StatusNotFound, get("/v1/unknown").Code)
	{
		req, err := http.NewRequest("POST", "/v1/alive", nil)
		assert.Nil(err)
		respRecorder := httptest.NewRecorder()
		router.ServeHTTP(respRecorder, req)
		assert.NotEqual(http.StatusOK, respRecorder.Code)
	}
}

func TestStatusAPIPathPrefix(t *testing.T) {
	assert := assert.New(t)
	log.SetLevel(log.DebugLevel)

	monitor := &fakeSessionMonitor{state: client.StateEstablished}
	uut, err := GetAPIRestStatusHandler(monitor, nil, &common.HTTPConfig{})
	assert.Nil(err)
	router := DefineStatusRouter(uut, "/wampc")

	req, err := http.NewRequest("GET", "/wampc/v1/session", nil)
	assert.Nil(err)
	respRecorder := httptest.NewRecorder()
	router.ServeHTTP(respRecorder, req)
	assert.Equal(http.StatusOK, respRecorder.Code)
	var msg APIRestRespSessionStatus
	assert.Nil(json.Unmarshal(respRecorder.Body.Bytes(), &msg))
	assert.Nil(msg.ForwardedEvents)
}
