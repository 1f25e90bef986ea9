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

import "github.com/spf13/viper"

// ===============================================================================
// WAMP Router Related Config

// RouterConfig defines parameters for connecting to the WAMP router
type RouterConfig struct {
	// URL is the WebSocket URL of the router, i.e. ws://127.0.0.1:8080/ws
	URL string `mapstructure:"url" json:"url" validate:"required,url"`
	// Realm is the realm to join
	Realm string `mapstructure:"realm" json:"realm" validate:"required"`
	// Serializers is the list of serializers to offer, in order of preference
	Serializers []string `mapstructure:"serializers" json:"serializers" validate:"required,min=1,dive,oneof=json msgpack"`
	// StrictNegotiation whether the router must select one of the offered subprotocols
	StrictNegotiation bool `mapstructure:"strict_negotiation" json:"strict_negotiation"`
	// HandshakeTimeout is the max duration for the WebSocket handshake in seconds
	HandshakeTimeout int `mapstructure:"handshake_timeout_sec" json:"handshake_timeout_sec" validate:"gte=1"`
	// KeepaliveInterval is the WebSocket ping interval in seconds. 0 disables keepalive.
	KeepaliveInterval int `mapstructure:"keepalive_interval_sec" json:"keepalive_interval_sec" validate:"gte=0"`
	// MaxMessageSize is the largest inbound frame accepted in bytes. 0 means no limit.
	MaxMessageSize int64 `mapstructure:"max_message_size" json:"max_message_size" validate:"gte=0"`
}

// AuthConfig defines the session authentication parameters
type AuthConfig struct {
	// AuthID is the authentication ID announced in HELLO
	AuthID string `mapstructure:"authid" json:"authid"`
	// AuthMethods is the list of authentication methods announced in HELLO
	AuthMethods []string `mapstructure:"authmethods" json:"authmethods" validate:"omitempty,dive,oneof=anonymous ticket wampcra"`
	// Ticket is the ticket used for "ticket" authentication
	Ticket string `mapstructure:"ticket" json:"-"`
	// Secret is the shared secret used for "wampcra" authentication
	Secret string `mapstructure:"secret" json:"-"`
}

// SessionConfig defines the WAMP session parameters
type SessionConfig struct {
	// JoinTimeout is the max duration to wait for WELCOME in seconds
	JoinTimeout int `mapstructure:"join_timeout_sec" json:"join_timeout_sec" validate:"gte=1"`
	// RequestTimeout is the default max duration to wait for a request reply in seconds
	RequestTimeout int `mapstructure:"request_timeout_sec" json:"request_timeout_sec" validate:"gte=1"`
	// WorkerCount is the number of workers running user handlers
	WorkerCount int `mapstructure:"worker_count" json:"worker_count" validate:"gte=1"`
	// TaskBuffer is the size of the queue in front of the workers
	TaskBuffer int `mapstructure:"task_buffer" json:"task_buffer" validate:"gte=0"`
	// Auth defines the authentication parameters
	Auth AuthConfig `mapstructure:"auth" json:"auth" validate:"required,dive"`
}

// ===============================================================================
// NATS Related Config

// NATSReconnectConfig defines reconnect parameters
type NATSReconnectConfig struct {
	// MaxAttempts sets the max number of reconnect attempts (-1 is unlimited)
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts" validate:"gte=-1"`
	// WaitInterval is the duration between reconnect attempts in seconds
	WaitInterval int `mapstructure:"wait_interval_sec" json:"wait_interval_sec" validate:"gte=1"`
}

// NATSConfig defines parameters for connecting to NATS server
type NATSConfig struct {
	// ServerURI is the NATS connection URI
	ServerURI string `mapstructure:"server_uri" json:"server_uri" validate:"required,uri"`
	// ConnectTimeout is the max duration for connecting to NATS server in seconds
	ConnectTimeout int `mapstructure:"connect_timeout_sec" json:"connect_timeout_sec" validate:"gte=1"`
	// Reconnect defines reconnect parameters
	Reconnect NATSReconnectConfig `mapstructure:"reconnect" json:"reconnect" validate:"required,dive"`
}

// ===============================================================================
// Event Bridge Related Config

// BridgeForward defines one WAMP topic to NATS subject forwarding rule
type BridgeForward struct {
	// Topic is the WAMP topic to subscribe to
	Topic string `mapstructure:"topic" json:"topic" validate:"required"`
	// Match is the WAMP subscription match policy
	Match string `mapstructure:"match" json:"match" validate:"omitempty,oneof=exact prefix wildcard"`
	// Subject is the NATS subject to forward events to
	Subject string `mapstructure:"subject" json:"subject" validate:"required"`
}

// BridgeConfig defines the WAMP event to NATS bridge
type BridgeConfig struct {
	// NATS are the NATS related config parameters
	NATS NATSConfig `mapstructure:"nats" json:"nats" validate:"required,dive"`
	// UseJetStream whether to publish through JetStream and wait for the ACK
	UseJetStream bool `mapstructure:"use_jetstream" json:"use_jetstream"`
	// Forwards are the forwarding rules
	Forwards []BridgeForward `mapstructure:"forwards" json:"forwards" validate:"required,min=1,dive"`
}

// ===============================================================================
// HTTP Related Config

// HTTPServerConfig defines the HTTP server parameters
type HTTPServerConfig struct {
	// ListenOn is the interface the HTTP server will listen on
	ListenOn string `mapstructure:"listen_on" json:"listen_on" validate:"required,ip"`
	// Port is the port the HTTP server will listen on
	Port uint16 `mapstructure:"listen_port" json:"listen_port" validate:"required,gt=0,lt=65536"`
	// ReadTimeout is the maximum duration for reading the entire
	// request, including the body in seconds. A zero or negative
	// value means there will be no timeout.
	ReadTimeout int `mapstructure:"read_timeout_sec" json:"read_timeout_sec" validate:"gte=0"`
	// WriteTimeout is the maximum duration before timing out
	// writes of the response in seconds. A zero or negative value
	// means there will be no timeout.
	WriteTimeout int `mapstructure:"write_timeout_sec" json:"write_timeout_sec" validate:"gte=0"`
	// IdleTimeout is the maximum amount of time to wait for the
	// next request when keep-alives are enabled in seconds. If
	// IdleTimeout is zero, the value of ReadTimeout is used. If
	// both are zero, there is no timeout.
	IdleTimeout int `mapstructure:"idle_timeout_sec" json:"idle_timeout_sec" validate:"gte=0"`
}

// HTTPRequestLogging defines HTTP request logging parameters
type HTTPRequestLogging struct {
	// RequestIDHeader is the HTTP header containing the API request ID
	RequestIDHeader string `mapstructure:"request_id_header" json:"request_id_header"`
	// DoNotLogHeaders is the list of headers to not include in logging metadata
	DoNotLogHeaders []string `mapstructure:"do_not_log_headers" json:"do_not_log_headers"`
}

// HTTPConfig defines HTTP API / server parameters
type HTTPConfig struct {
	// Server defines HTTP server parameters
	Server HTTPServerConfig `mapstructure:"server_config" json:"server_config" validate:"required,dive"`
	// Logging defines operation logging parameters
	Logging HTTPRequestLogging `mapstructure:"logging_config" json:"logging_config" validate:"required,dive"`
}

// StatusAPIConfig defines configuration for the session status API server
type StatusAPIConfig struct {
	// HTTPSetting is the HTTP API / server parameters
	HTTPSetting HTTPConfig `mapstructure:"api_server" json:"api_server" validate:"required,dive"`
	// PathPrefix is the end-point path prefix for the status APIs
	PathPrefix string `mapstructure:"path_prefix" json:"path_prefix" validate:"required"`
}

// ===============================================================================
// Complete Config

// SystemConfig defines the complete client config
type SystemConfig struct {
	// Router are the WAMP router connection parameters
	Router RouterConfig `mapstructure:"router" json:"router" validate:"required,dive"`
	// Session are the WAMP session parameters
	Session SessionConfig `mapstructure:"session" json:"session" validate:"required,dive"`
	// Bridge is the optional WAMP event to NATS bridge
	Bridge *BridgeConfig `mapstructure:"bridge,omitempty" json:"bridge,omitempty" validate:"omitempty,dive"`
	// StatusAPI is the optional session status API server
	StatusAPI *StatusAPIConfig `mapstructure:"status_api,omitempty" json:"status_api,omitempty" validate:"omitempty,dive"`
}

// ===============================================================================

// InstallDefaultConfigValues installs default config parameters in viper
func InstallDefaultConfigValues() {
	// Default router settings
	viper.SetDefault("router.url", "ws://127.0.0.1:8080/ws")
	viper.SetDefault("router.realm", "realm1")
	viper.SetDefault("router.serializers", []string{"msgpack", "json"})
	viper.SetDefault("router.strict_negotiation", true)
	viper.SetDefault("router.handshake_timeout_sec", 10)
	viper.SetDefault("router.keepalive_interval_sec", 30)
	viper.SetDefault("router.max_message_size", 16*1024*1024)

	// Default session settings
	viper.SetDefault("session.join_timeout_sec", 10)
	viper.SetDefault("session.request_timeout_sec", 30)
	viper.SetDefault("session.worker_count", 4)
	viper.SetDefault("session.task_buffer", 1024)
	viper.SetDefault("session.auth.authmethods", []string{"anonymous"})

	// Default status API server settings
	viper.SetDefault("status_api.path_prefix", "/")
	viper.SetDefault("status_api.api_server.server_config.listen_on", "0.0.0.0")
	viper.SetDefault("status_api.api_server.server_config.listen_port", 3000)
	viper.SetDefault("status_api.api_server.server_config.read_timeout_sec", 60)
	viper.SetDefault("status_api.api_server.server_config.write_timeout_sec", 60)
	viper.SetDefault("status_api.api_server.server_config.idle_timeout_sec", 600)
	viper.SetDefault(
		"status_api.api_server.logging_config.request_id_header", "Wampc-Request-ID",
	)
	viper.SetDefault(
		"status_api.api_server.logging_config.do_not_log_headers", []string{
			"WWW-Authenticate", "Authorization", "Proxy-Authenticate", "Proxy-Authorization",
		},
	)
}

// InstallBridgeDefaultConfigValues installs default NATS parameters for the event bridge
//
// The bridge has no usable default forwarding rules, so these are only
// installed when the bridge is requested.
func InstallBridgeDefaultConfigValues() {
	viper.SetDefault("bridge.nats.server_uri", "nats://127.0.0.1:4222")
	viper.SetDefault("bridge.nats.connect_timeout_sec", 30)
	viper.SetDefault("bridge.nats.reconnect.max_attempts", -1)
	viper.SetDefault("bridge.nats.reconnect.wait_interval_sec", 15)
	viper.SetDefault("bridge.use_jetstream", false)
}
