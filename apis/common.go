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

// Package apis implements the session status REST API.
package apis

import (
	"net/http"

	"github.com/alwitt/wampc/common"
	"github.com/apex/log"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// MethodHandlers DICT of method-endpoint handler
type MethodHandlers map[string]http.HandlerFunc

// RegisterPathPrefix Register new method handler for an end-point
func RegisterPathPrefix(
	parentRouter *mux.Router, pathPrefix string, methodHandlers MethodHandlers,
) *mux.Router {
	router := parentRouter.PathPrefix(pathPrefix).Subrouter()
	for method, handler := range methodHandlers {
		router.Methods(method).Path("").HandlerFunc(handler)
	}
	return router
}

// requestLogWriter sends combined access log lines to apex/log
type requestLogWriter struct {
	common.Component
}

// Write logging support
func (w requestLogWriter) Write(p []byte) (n int, err error) {
	log.WithFields(w.LogTags).Infof("%s", p)
	return len(p), nil
}

// DefineStatusRouter define the router serving the status API under pathPrefix
func DefineStatusRouter(handler APIRestStatusHandler, pathPrefix string) *mux.Router {
	router := mux.NewRouter()
	mainRouter := RegisterPathPrefix(router, pathPrefix, nil)
	v1Router := RegisterPathPrefix(mainRouter, "/v1", nil)

	_ = RegisterPathPrefix(v1Router, "/alive", MethodHandlers{
		"get": handler.AliveHandler(),
	})
	_ = RegisterPathPrefix(v1Router, "/ready", MethodHandlers{
		"get": handler.ReadyHandler(),
	})
	_ = RegisterPathPrefix(v1Router, "/session", MethodHandlers{
		"get": handler.SessionHandler(),
	})

	// Add logging
	accessLog := requestLogWriter{Component: common.NewComponent("apis", "access-log", "")}
	router.Use(func(next http.Handler) http.Handler {
		return handlers.CombinedLoggingHandler(accessLog, next)
	})
	return router
}
