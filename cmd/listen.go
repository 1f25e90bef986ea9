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

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/alwitt/wampc/apis"
	"github.com/alwitt/wampc/bridge"
	"github.com/alwitt/wampc/client"
	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/core"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// bridgePublishTimeout max time to wait for NATS to accept one bridged event
const bridgePublishTimeout = time.Second * 10

// RunListener join the realm, forward the bridged topics to NATS, and serve
// the status API until runTimeContext ends or the session is lost.
//
// natsClient may be nil when no bridge is configured.
func RunListener(
	runTimeContext context.Context,
	config *common.SystemConfig,
	instance string,
	natsClient *core.NatsClient,
	wg *sync.WaitGroup,
) error {
	logTags := log.Fields{
		"module":    "cmd",
		"component": "listen",
		"instance":  instance,
	}

	localCtxt, lclCancel := context.WithCancel(runTimeContext)
	defer lclCancel()

	params := client.SessionParamsFromConfig(config.Session)
	params.OnLeave = func(details wamp.CloseDetails) {
		log.WithFields(logTags).Errorf("Session ended with '%s' %s", details.Reason, details.Message)
		lclCancel()
	}
	session, err := openSession(localCtxt, config, params, logTags, wg)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(wamp.CloseStatusGoingAway, "shutdown"); err != nil {
			log.WithError(err).WithFields(logTags).Error("Session close failed")
		}
	}()

	// -------------------------------------------------------------------
	// Event bridge

	var forwarded apis.ForwardCounter
	if config.Bridge != nil && natsClient != nil {
		publisher, err := bridge.GetEventPublisher(natsClient, instance)
		if err != nil {
			log.WithError(err).WithFields(logTags).Errorf("Unable to define event publisher")
			return err
		}
		forwarder, err := bridge.DefineEventForwarder(
			session, publisher, bridge.RulesFromConfig(config.Bridge.Forwards), bridgePublishTimeout,
		)
		if err != nil {
			log.WithError(err).WithFields(logTags).Errorf("Unable to define event forwarder")
			return err
		}
		if err := forwarder.Start(localCtxt); err != nil {
			return err
		}
		forwarded = forwarder
	}

	// -------------------------------------------------------------------
	// Start the HTTP server

	var httpSrv *http.Server
	if config.StatusAPI != nil {
		httpHandler, err := apis.GetAPIRestStatusHandler(session, forwarded, &config.StatusAPI.HTTPSetting)
		if err != nil {
			log.WithError(err).WithFields(logTags).Errorf("Unable to define HTTP handler")
			return err
		}
		router := apis.DefineStatusRouter(httpHandler, config.StatusAPI.PathPrefix)

		serverCfg := config.StatusAPI.HTTPSetting.Server
		serverListen := fmt.Sprintf("%s:%d", serverCfg.ListenOn, serverCfg.Port)
		httpSrv = &http.Server{
			Addr:         serverListen,
			ReadTimeout:  time.Second * time.Duration(serverCfg.ReadTimeout),
			WriteTimeout: time.Second * time.Duration(serverCfg.WriteTimeout),
			IdleTimeout:  time.Second * time.Duration(serverCfg.IdleTimeout),
			Handler:      h2c.NewHandler(router, &http2.Server{}),
		}

		// Start the server
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithError(err).Error("HTTP Server Failure")
			}
		}()

		log.WithFields(logTags).Infof("Started HTTP server on http://%s", serverListen)
	}

	// ============================================================================

	<-localCtxt.Done()

	// Stop the HTTP server
	if httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Failure during HTTP shutdown")
		}
	}

	return nil
}
