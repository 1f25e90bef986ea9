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
	"sync"

	"github.com/alwitt/wampc/client"
	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/wamp"
	"github.com/apex/log"
	"github.com/go-playground/validator/v10"
	"github.com/urfave/cli/v2"
)

// PublishCLIArgs arguments
type PublishCLIArgs struct {
	Topic       string `validate:"required"`
	Args        string
	Kwargs      string
	Acknowledge bool
	ExcludeMe   bool
}

// GetPublishCLIFlags retrieve the set of CMD flags for the publish command
func GetPublishCLIFlags(args *PublishCLIArgs) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "topic",
			Usage:       "Topic URI to publish to",
			Aliases:     []string{"t"},
			Destination: &args.Topic,
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
		&cli.BoolFlag{
			Name:        "ack",
			Usage:       "Wait for the router to acknowledge the publication",
			Value:       false,
			DefaultText: "false",
			Destination: &args.Acknowledge,
			Required:    false,
		},
		&cli.BoolFlag{
			Name:        "exclude-me",
			Usage:       "Exclude this session from receiving the event",
			Value:       true,
			DefaultText: "true",
			Destination: &args.ExcludeMe,
			Required:    false,
		},
	}
}

// RunPublish publish one event
func RunPublish(
	runTimeContext context.Context,
	params PublishCLIArgs,
	config *common.SystemConfig,
	instance string,
	wg *sync.WaitGroup,
) error {
	logTags := log.Fields{
		"module":    "cmd",
		"component": "publish",
		"instance":  instance,
	}

	validate := validator.New()
	if err := validate.Struct(&params); err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid CMD args")
		return err
	}
	args, kwargs, err := parseJSONPayload(params.Args, params.Kwargs)
	if err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid publish payload")
		return err
	}

	session, err := openSession(runTimeContext, config, client.SessionParamsFromConfig(config.Session), logTags, wg)
	if err != nil {
		return err
	}
	defer func() {
		_ = session.Close(wamp.CloseStatusNormal, "done")
	}()

	excludeMe := params.ExcludeMe
	pub, err := session.Publish(runTimeContext, wamp.URI(params.Topic), args, kwargs, wamp.PublishOptions{
		Acknowledge: params.Acknowledge,
		ExcludeMe:   &excludeMe,
	})
	if err != nil {
		log.WithError(err).WithFields(logTags).Errorf("Publish to '%s' failed", params.Topic)
		return err
	}
	if pub != nil {
		fmt.Printf("publication %d\n", pub.ID)
	}
	return nil
}
