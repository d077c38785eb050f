package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/ups-bridge/pkg/file"
	"github.com/cenkalti/backoff"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// MQTTClient defines the interface for an MQTT client.
type MQTTClient interface {
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
}

// Options configures the broker connection.
type Options struct {
	Host              string
	Port              int
	ClientID          string
	Username          string
	Password          string
	CACertificate     string        // path; enables ssl:// when set
	KeepAlive         time.Duration
	ReconnectInterval time.Duration // fixed delay between reconnect attempts
	ConnectTimeout    time.Duration
	ConnectAttempts   uint64 // initial connect attempts before giving up

	// Last will, published by the broker when the connection drops.
	WillTopic   string
	WillPayload string
	WillQOS     byte
}

// MqttService provides methods for MQTT operations.
type MqttService struct {
	client     MQTTClient
	fileClient file.FileOperations
	logger     zerolog.Logger

	mu         sync.Mutex
	onConnect  []func()
	connectCnt int
}

// NewMqttService creates a new MqttService instance.
func NewMqttService(fileClient file.FileOperations, logger zerolog.Logger) *MqttService {
	return &MqttService{
		fileClient: fileClient,
		logger:     logger.With().Str("component", "mqtt").Logger(),
	}
}

// NewMqttServiceWithClient wraps an existing client. Used by tests.
func NewMqttServiceWithClient(client MQTTClient, logger zerolog.Logger) *MqttService {
	return &MqttService{client: client, logger: logger.With().Str("component", "mqtt").Logger()}
}

// BrokerURL builds the paho broker URL.
func BrokerURL(host string, port int, tlsEnabled bool) string {
	scheme := "tcp"
	if tlsEnabled {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// Initialize sets up the MQTT client and connects, retrying the first
// connection with exponential backoff. Later drops are handled by paho's
// auto-reconnect.
func (s *MqttService) Initialize(opts Options) error {
	clientOpts, err := s.clientOptions(opts)
	if err != nil {
		return err
	}

	s.client = mqtt.NewClient(clientOpts)

	attempts := opts.ConnectAttempts
	if attempts == 0 {
		attempts = 5
	}

	connect := func() error {
		token := s.Connect()
		if token.Wait() && token.Error() != nil {
			s.logger.Warn().Err(token.Error()).Msg("MQTT connect attempt failed")
			return token.Error()
		}
		return nil
	}

	if err := backoff.Retry(connect, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), attempts-1)); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return nil
}

// clientOptions maps opts onto paho options and wires the connection handlers.
func (s *MqttService) clientOptions(opts Options) (*mqtt.ClientOptions, error) {
	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(BrokerURL(opts.Host, opts.Port, opts.CACertificate != ""))
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetCleanSession(true)
	clientOpts.SetAutoReconnect(true)
	clientOpts.SetOrderMatters(false)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}
	if opts.KeepAlive > 0 {
		clientOpts.SetKeepAlive(opts.KeepAlive)
	}
	if opts.ReconnectInterval > 0 {
		// paho reconnects after 1s and doubles the delay, so this only caps it
		clientOpts.SetConnectRetryInterval(opts.ReconnectInterval)
		clientOpts.SetMaxReconnectInterval(opts.ReconnectInterval)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.WillTopic != "" {
		clientOpts.SetWill(opts.WillTopic, opts.WillPayload, opts.WillQOS, true)
	}

	if opts.CACertificate != "" {
		tlsConfig, err := s.tlsConfig(opts.CACertificate)
		if err != nil {
			return nil, err
		}
		clientOpts.SetTLSConfig(tlsConfig)
	}

	clientOpts.SetOnConnectHandler(func(_ mqtt.Client) {
		s.logger.Info().Msg("Connected to MQTT broker")
		s.fireOnConnect()
	})
	clientOpts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.logger.Warn().Err(err).Dur("retry_in", opts.ReconnectInterval).Msg("MQTT connection lost, reconnecting")
	})
	clientOpts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		s.logger.Debug().Msg("Reconnecting to MQTT broker")
	})

	return clientOpts, nil
}

func (s *MqttService) tlsConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := s.fileClient.ReadFileRaw(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caCertPool := x509.NewCertPool()
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append CA certificate")
	}

	return &tls.Config{RootCAs: caCertPool, MinVersion: tls.VersionTLS12}, nil
}

// AddOnConnectHandler registers fn to run after every (re)connect. If the
// client is already connected fn also runs once immediately. A handler added
// while paho's first on-connect callback is in flight may run twice for that
// connect, so handlers must be idempotent.
func (s *MqttService) AddOnConnectHandler(fn func()) {
	s.mu.Lock()
	s.onConnect = append(s.onConnect, fn)
	s.mu.Unlock()

	if s.IsConnected() {
		fn()
	}
}

func (s *MqttService) fireOnConnect() {
	s.mu.Lock()
	s.connectCnt++
	handlers := make([]func(), len(s.onConnect))
	copy(handlers, s.onConnect)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

// Connects returns how many times the broker connection was established.
func (s *MqttService) Connects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectCnt
}

// Connect connects to the MQTT broker.
func (s *MqttService) Connect() mqtt.Token {
	return s.client.Connect()
}

// Publish sends a message to the specified topic.
func (s *MqttService) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	return s.client.Publish(topic, qos, retained, payload)
}

// Subscribe subscribes to the specified topic with a message handler.
func (s *MqttService) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	return s.client.Subscribe(topic, qos, callback)
}

// Unsubscribe unsubscribes from the specified topics.
func (s *MqttService) Unsubscribe(topics ...string) mqtt.Token {
	return s.client.Unsubscribe(topics...)
}

// Disconnect gracefully disconnects the MQTT client.
func (s *MqttService) Disconnect(quiesce uint) {
	if s.client != nil {
		s.client.Disconnect(quiesce)
	}
}

// IsConnected reports whether the client currently has a broker connection.
func (s *MqttService) IsConnected() bool {
	return s.client != nil && s.client.IsConnected()
}
