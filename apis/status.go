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
	"net/http"

	"github.com/alwitt/goutils"
	"github.com/alwitt/wampc/client"
	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
)

// SessionMonitor source of the session state reported by the status API
type SessionMonitor interface {
	State() client.SessionState
	Details() (wamp.SessionDetails, bool)
}

// ForwardCounter source of the bridged event count
type ForwardCounter interface {
	Forwarded() uint64
}

// APIRestStatusHandler REST handler for session status
type APIRestStatusHandler struct {
	goutils.RestAPIHandler
	session   SessionMonitor
	forwarder ForwardCounter
}

// GetAPIRestStatusHandler define APIRestStatusHandler
//
// forwarder is optional.
func GetAPIRestStatusHandler(
	session SessionMonitor, forwarder ForwardCounter, httpConfig *common.HTTPConfig,
) (APIRestStatusHandler, error) {
	logTags := log.Fields{
		"module":    "apis",
		"component": "session-status",
	}
	return APIRestStatusHandler{
		RestAPIHandler: goutils.RestAPIHandler{
			Component: goutils.Component{
				LogTags: logTags,
				LogTagModifiers: []goutils.LogMetadataModifier{
					goutils.ModifyLogMetadataByRestRequestParam,
				},
			},
			CallRequestIDHeaderField: &httpConfig.Logging.RequestIDHeader,
			DoNotLogHeaders: func() map[string]bool {
				result := map[string]bool{}
				for _, v := range httpConfig.Logging.DoNotLogHeaders {
					result[v] = true
				}
				return result
			}(),
		},
		session:   session,
		forwarder: forwarder,
	}, nil
}

// -----------------------------------------------------------------------

// Alive godoc
// @Summary For status API liveness check
// @Description Will return success to indicate the status API is live
// @tags Status
// @Produce json
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 400 {string} string "error"
// @Failure 404 {string} string "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/alive [get]
func (h APIRestStatusHandler) Alive(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	if err := h.WriteRESTResponse(
		w, http.StatusOK, h.GetStdRESTSuccessMsg(r.Context()), nil,
	); err != nil {
		log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
	}
}

// AliveHandler Wrapper around Alive
func (h APIRestStatusHandler) AliveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Alive(w, r)
	}
}

// -----------------------------------------------------------------------

// Ready godoc
// @Summary For status API readiness check
// @Description Will return success only while the WAMP session is established
// @tags Status
// @Produce json
// @Success 200 {object} goutils.RestAPIBaseResponse "success"
// @Failure 400 {string} string "error"
// @Failure 404 {string} string "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/ready [get]
func (h APIRestStatusHandler) Ready(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	var respCode int
	var respBody interface{}
	defer func() {
		if err := h.WriteRESTResponse(w, respCode, respBody, nil); err != nil {
			log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
		}
	}()

	if state := h.session.State(); state == client.StateEstablished {
		respCode = http.StatusOK
		respBody = h.GetStdRESTSuccessMsg(r.Context())
	} else {
		msg := "not ready"
		respCode = http.StatusInternalServerError
		respBody = h.GetStdRESTErrorMsg(
			r.Context(), http.StatusInternalServerError, msg, "session is "+state.String(),
		)
	}
}

// ReadyHandler Wrapper around Ready
func (h APIRestStatusHandler) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Ready(w, r)
	}
}

// -----------------------------------------------------------------------

// APIRestRespSessionStatus response for the session status
type APIRestRespSessionStatus struct {
	goutils.RestAPIBaseResponse
	// State the session state
	State string `json:"state"`
	// Details the session details, while established
	Details *wamp.SessionDetails `json:"details,omitempty"`
	// ForwardedEvents the number of events bridged to NATS
	ForwardedEvents *uint64 `json:"forwarded_events,omitempty"`
}

// Session godoc
// @Summary Query the WAMP session
// @Description Query the state and details of the WAMP session
// @tags Status
// @Produce json
// @Param Wampc-Request-ID header string false "User provided request ID to match against logs"
// @Success 200 {object} APIRestRespSessionStatus "success"
// @Failure 400 {string} string "error"
// @Failure 404 {string} string "error"
// @Failure 500 {object} goutils.RestAPIBaseResponse "error"
// @Router /v1/session [get]
func (h APIRestStatusHandler) Session(w http.ResponseWriter, r *http.Request) {
	localLogTags := h.GetLogTagsForContext(r.Context())
	resp := APIRestRespSessionStatus{
		RestAPIBaseResponse: h.GetStdRESTSuccessMsg(r.Context()),
		State:               h.session.State().String(),
	}
	if details, ok := h.session.Details(); ok {
		resp.Details = &details
	}
	if h.forwarder != nil {
		forwarded := h.forwarder.Forwarded()
		resp.ForwardedEvents = &forwarded
	}
	if err := h.WriteRESTResponse(w, http.StatusOK, resp, nil); err != nil {
		log.WithError(err).WithFields(localLogTags).Error("Failed to form response")
	}
}

// SessionHandler Wrapper around Session
func (h APIRestStatusHandler) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.Session(w, r)
	}
}
