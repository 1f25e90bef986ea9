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
	"sync"
	"time"

	"github.com/alwitt/wampc/client"
	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v2"
)

// CallCLIArgs arguments
type CallCLIArgs struct {
	Procedure  string `validate:"required"`
	Args       string
	Kwargs     string
	TimeoutSec int `validate:"gte=0"`
	DiscloseMe bool
}

// GetCallCLIFlags retrieve the set of CMD flags for the call command
func GetCallCLIFlags(args *CallCLIArgs) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "procedure",
			Usage:       "Procedure URI to call",
			Aliases:     []string{"p"},
			Destination: &args.Procedure,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "args",
			Usage:       "Positional arguments as a JSON list",
			Aliases:     []string{"a"},
			Destination: &args.Args,
			Required:    false,
		},
		&cli.StringFlag{
			Name:        "kwargs",
			Usage:       "Keyword arguments as a JSON object",
			Aliases:     []string{"k"},
			Destination: &args.Kwargs,
			Required:    false,
		},
		&cli.IntFlag{
			Name:        "timeout",
			Usage:       "Call timeout in seconds. 0 uses the session request timeout.",
			Aliases:     []string{"t"},
			Value:       0,
			DefaultText: "0",
			Destination: &args.TimeoutSec,
			Required:    false,
		},
		&cli.BoolFlag{
			Name:        "disclose-me",
			Usage:       "Ask the router to disclose the caller to the callee",
			Value:       false,
			DefaultText: "false",
			Destination: &args.DiscloseMe,
			Required:    false,
		},
	}
}

// RunCall call one procedure and print the result
func RunCall(
	runTimeContext context.Context,
	params CallCLIArgs,
	config *common.SystemConfig,
	instance string,
	wg *sync.WaitGroup,
) error {
	logTags := log.Fields{
		"module":    "cmd",
		"component": "call",
		"instance":  instance,
	}

	validate := validator.New()
	if err := validate.Struct(&params); err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid CMD args")
		return err
	}
	args, kwargs, err := parseJSONPayload(params.Args, params.Kwargs)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid call payload")
		return err
	}

	session, err := openSession(runTimeContext, config, client.SessionParamsFromConfig(config.Session), logTags, wg)
	if err != nil {
		return err
	}
	defer func() {
		_ = session.Close(wamp.CloseStatusNormal, "done")
	}()

	result, err := session.Call(runTimeContext, wamp.URI(params.Procedure), args, kwargs, wamp.CallOptions{
		Timeout:    time.Second * time.Duration(params.TimeoutSec),
		DiscloseMe: params.DiscloseMe,
	})
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Call to '%s' failed", params.Procedure)
		return err
	}
	return printResult(result.Args, result.Kwargs)
}
