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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/alwitt/wampc/client"
	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
)

// parseJSONPayload parse the JSON positional and keyword arguments given on the command line
func parseJSONPayload(args, kwargs string) (wamp.List, wamp.Dict, error) {
	var argList wamp.List
	if args != "" {
		decoder := json.NewDecoder(bytes.NewReader([]byte(args)))
		decoder.UseNumber()
		var raw []interface{}
		if err := decoder.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("args must be a JSON list: %w", err)
		}
		argList = wamp.Normalize(raw).(wamp.List)
	}
	var kwargDict wamp.Dict
	if kwargs != "" {
		decoder := json.NewDecoder(bytes.NewReader([]byte(kwargs)))
		decoder.UseNumber()
		var raw map[string]interface{}
		if err := decoder.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("kwargs must be a JSON object: %w", err)
		}
		kwargDict = wamp.Normalize(raw).(wamp.Dict)
	}
	return argList, kwargDict, nil
}

// openSession connect to the router and join the configured realm
func openSession(
	ctxt context.Context,
	config *common.SystemConfig,
	params client.SessionParams,
	logTags log.Fields,
	wg *sync.WaitGroup,
) (client.Session, error) {
	session, err := client.ConnectWebSocket(ctxt, config.Router, params, wg)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to connect to %s", config.Router.URL)
		return nil, err
	}
	details, err := session.Join(
		ctxt, wamp.URI(config.Router.Realm), config.Session.Auth.AuthMethods, config.Session.Auth.AuthID,
	)
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Unable to join realm '%s'", config.Router.Realm)
		_ = session.Close(wamp.CloseStatusNormal, "join failed")
		return nil, err
	}
	log.WithFields(logTags).Infof("Joined '%s' as session %d", details.Realm, details.Session)
	return session, nil
}

// printResult write the args / kwargs of a result to stdout as JSON
func printResult(args wamp.List, kwargs wamp.Dict) error {
	out, err := json.MarshalIndent(map[string]interface{}{"args": args, "kwargs": kwargs}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
