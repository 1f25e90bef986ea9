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

package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/alwitt/wampc/cmd"
	"github.com/alwitt/wampc/common"
	"github.com/alwitt/wampc/core"
	"github.com/apex/log"
	apexJSON "github.com/apex/log/handlers/json"
	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/spf13/viper"
	"github.com/urfave/cli/v2"
)

type cliArgs struct {
	JSONLog    bool
	LogLevel   string `validate:"required,oneof=debug info warn error"`
	ConfigFile string `validate:"omitempty,file"`
	Hostname   string
}

var cmdArgs cliArgs

var callArgs cmd.CallCLIArgs

var publishArgs cmd.PublishCLIArgs

var logTags log.Fields

func main() {
	hostname, err := os.Hostname()
	if err != nil {
		log.WithError(err).Fatal("Unable to read hostname")
	}
	cmdArgs.Hostname = hostname
	logTags = log.Fields{
		"module":    "main",
		"component": "main",
		"instance":  hostname,
	}

	common.InstallDefaultConfigValues()

	app := &cli.App{
		Name:        "wampc",
		Version:     "v0.1.0",
		Usage:       "application entrypoint",
		Description: "WAMP v2 client over WebSocket with a NATS event bridge",
		Flags: []cli.Flag{
			// LOGGING
			&cli.BoolFlag{
				Name:        "json-log",
				Usage:       "Whether to log in JSON format",
				Aliases:     []string{"j"},
				EnvVars:     []string{"LOG_AS_JSON"},
				Value:       false,
				DefaultText: "false",
				Destination: &cmdArgs.JSONLog,
				Required:    false,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "Logging level: [debug info warn error]",
				Aliases:     []string{"l"},
				EnvVars:     []string{"LOG_LEVEL"},
				Value:       "warn",
				DefaultText: "warn",
				Destination: &cmdArgs.LogLevel,
				Required:    false,
			},
			// Config file
			&cli.StringFlag{
				Name:        "config-file",
				Usage:       "Application config file. Use DEFAULT if not specified.",
				Aliases:     []string{"c"},
				EnvVars:     []string{"CONFIG_FILE"},
				Value:       "",
				DefaultText: "",
				Destination: &cmdArgs.ConfigFile,
				Required:    false,
			},
		},
		// Components
		Commands: []*cli.Command{
			{
				Name:        "call",
				Usage:       "Call a remote procedure",
				Description: "Join the realm, call one procedure, and print its result as JSON",
				Flags:       cmd.GetCallCLIFlags(&callArgs),
				Action: oneShot(func(ctxt context.Context, config *common.SystemConfig, wg *sync.WaitGroup) error {
					return cmd.RunCall(ctxt, callArgs, config, cmdArgs.Hostname, wg)
				}),
			},
			{
				Name:        "publish",
				Usage:       "Publish an event",
				Description: "Join the realm and publish one event to a topic",
				Flags:       cmd.GetPublishCLIFlags(&publishArgs),
				Action: oneShot(func(ctxt context.Context, config *common.SystemConfig, wg *sync.WaitGroup) error {
					return cmd.RunPublish(ctxt, publishArgs, config, cmdArgs.Hostname, wg)
				}),
			},
			{
				Name:        "listen",
				Usage:       "Stay joined and bridge events to NATS",
				Description: "Join the realm, forward configured topics to NATS, and serve the status API",
				Action:      runListener,
			},
		},
	}

	err = app.Run(os.Args)
	if err != nil {
		log.WithError(err).WithFields(logTags).Fatal("Program shutdown")
	}
}

// setupLogging apply the logging flags
func setupLogging() {
	if cmdArgs.JSONLog {
		log.SetHandler(apexJSON.New(os.Stderr))
	}
	level, err := log.ParseLevel(cmdArgs.LogLevel)
	if err != nil {
		level = log.ErrorLevel
	}
	log.SetLevel(level)
}

// loadConfig validate the global flags, then read the config file and
// environment overrides
//
// Config keys may be overridden by environment variables with the WAMPC_
// prefix, e.g. WAMPC_ROUTER_URL for router.url.
func loadConfig() (*common.SystemConfig, error) {
	validate := validator.New()
	if err := validate.Struct(&cmdArgs); err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid CMD args")
		return nil, err
	}
	setupLogging()
	if dump, err := json.MarshalIndent(&cmdArgs, "", "  "); err == nil {
		log.Debugf("Starting params\n%s", dump)
	}

	viper.SetEnvPrefix("wampc")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if cmdArgs.ConfigFile != "" {
		viper.SetConfigFile(cmdArgs.ConfigFile)
		if err := viper.ReadInConfig(); err != nil {
			log.WithError(err).WithFields(logTags).Errorf("Failed to read config file %s", cmdArgs.ConfigFile)
			return nil, err
		}
	}
	if viper.IsSet("bridge.forwards") {
		common.InstallBridgeDefaultConfigValues()
	}

	config := new(common.SystemConfig)
	if err := viper.Unmarshal(config); err != nil {
		log.WithError(err).WithFields(logTags).Error("Failed to parse config")
		return nil, err
	}
	if dump, err := json.MarshalIndent(config, "", "  "); err == nil {
		log.Debugf("Effective config\n%s", dump)
	}
	if err := validate.Struct(config); err != nil {
		log.WithError(err).WithFields(logTags).Error("Invalid config content")
		return nil, err
	}
	return config, nil
}

// prepareNatsClient define the NATS client for the event bridge
func prepareNatsClient(
	config *common.BridgeConfig, ctxtCancel context.CancelFunc,
) (*core.NatsClient, error) {
	natsParam := core.NATSParamsFromConfig(config.NATS, config.UseJetStream)
	natsParam.OnCloseCallback = func(_ *nats.Conn) {
		log.WithFields(logTags).Error("NATS client closed connection")
		ctxtCancel()
	}
	natsClient, err := core.GetNatsClient(natsParam)
	if err != nil {
		return nil, err
	}
	return &natsClient, nil
}

func defineControlVars() (*sync.WaitGroup, context.Context, context.CancelFunc) {
	runTimeContext, rtCancel := context.WithCancel(context.Background())
	return &sync.WaitGroup{}, runTimeContext, rtCancel
}

// signalRecvSetup cancel the runtime context on SIGINT
func signalRecvSetup(wg *sync.WaitGroup, runTimeContext context.Context, ctxtCancel context.CancelFunc) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		cc := make(chan os.Signal, 1)
		signal.Notify(cc, os.Interrupt)
		defer signal.Stop(cc)
		select {
		case <-cc:
			ctxtCancel()
		case <-runTimeContext.Done():
		}
	}()
}

// ============================================================================
// One-shot subcommands

// oneShot wrap a command that joins, performs one operation, then leaves
func oneShot(
	run func(ctxt context.Context, config *common.SystemConfig, wg *sync.WaitGroup) error,
) cli.ActionFunc {
	return func(_ *cli.Context) error {
		config, err := loadConfig()
		if err != nil {
			return err
		}
		wg, runTimeContext, rtCancel := defineControlVars()
		defer wg.Wait()
		defer rtCancel()
		signalRecvSetup(wg, runTimeContext, rtCancel)
		return run(runTimeContext, config, wg)
	}
}

// ============================================================================
// Listen subcommand

// runListener stay joined until interrupted
func runListener(c *cli.Context) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	wg, runTimeContext, rtCancel := defineControlVars()
	defer wg.Wait()
	defer rtCancel()

	var natsClient *core.NatsClient
	if config.Bridge != nil {
		natsClient, err = prepareNatsClient(config.Bridge, rtCancel)
		if err != nil {
			log.WithError(err).WithFields(logTags).Errorf(
				"Failed to define NATS client with %s", config.Bridge.NATS.ServerURI,
			)
			return err
		}
		defer func() {
			ctxt, cancel := context.WithTimeout(context.Background(), time.Second*5)
			defer cancel()
			natsClient.Close(ctxt)
		}()
	}

	signalRecvSetup(wg, runTimeContext, rtCancel)

	return cmd.RunListener(runTimeContext, config, cmdArgs.Hostname, natsClient, wg)
}
