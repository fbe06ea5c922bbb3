// Package mqtt publishes schedules to an MQTT broker with Eclipse Paho.
// Providers and clients subscribe to their own topic; receivers may confirm
// a message on the ack topic with its message_id.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/caresched/infra/logger"
)

// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string        `json:"broker" yaml:"broker"`
	ClientID    string        `json:"client_id" yaml:"client_id"`
	Username    string        `json:"username" yaml:"username"`
	Password    string        `json:"password" yaml:"password"`
	TopicPrefix string        `json:"topic_prefix" yaml:"topic_prefix"`
	AckTopic    string        `json:"ack_topic" yaml:"ack_topic"`
	AckTimeout  time.Duration `json:"ack_timeout" yaml:"ack_timeout"`
	UseTLS      bool          `json:"use_tls" yaml:"use_tls"`
	ClientCert  string        `json:"client_cert" yaml:"client_cert"`
	ClientKey   string        `json:"client_key" yaml:"client_key"`
	CABundle    string        `json:"ca_bundle" yaml:"ca_bundle"`
	AuthMethod  string        `json:"auth_method" yaml:"auth_method"`
	QoS         byte          `json:"qos" yaml:"qos"`
	Retain      bool          `json:"retain" yaml:"retain"`
	LWTTopic    string        `json:"lwt_topic" yaml:"lwt_topic"`
	LWTPayload  string        `json:"lwt_payload" yaml:"lwt_payload"`
	MaxRetries  int           `json:"max_retries" yaml:"max_retries"`
	BackoffMS   int           `json:"backoff_ms" yaml:"backoff_ms"`
	TLSConfig   *tls.Config   `json:"-" yaml:"-"`
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

// SetDefaults fills the topic prefix and retry settings.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "caresched"
	}
	if c.ClientID == "" {
		c.ClientID = "caresched"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks QoS and TLS settings.
func (c Config) Validate() error {
	if c.QoS > 2 {
		return fmt.Errorf("mqtt: qos must be 0, 1 or 2")
	}
	if c.UseTLS && c.TLSConfig == nil && (c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "") {
		return fmt.Errorf("mqtt: tls requires client_cert, client_key and ca_bundle")
	}
	return nil
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// PahoClient publishes payloads with retries and tracks acknowledgments.
type PahoClient struct {
	cli        pahoClient
	ackTopic   string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration

	mu       sync.Mutex
	ackChans map[string]chan struct{}
	logger   logger.Logger
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoClient connects to the broker and subscribes to the ack topic when
// one is configured.
func NewPahoClient(cfg Config) (*PahoClient, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_client")
	pc := &PahoClient{
		ackTopic:   cfg.AckTopic,
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		ackChans:   make(map[string]chan struct{}),
		logger:     log,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if pc.ackTopic == "" {
			return
		}
		if token := c.Subscribe(pc.ackTopic, pc.qos, pc.onAck); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	pc.cli = c
	return pc, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.QoS, true)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

func (p *PahoClient) onAck(_ paho.Client, msg paho.Message) {
	var m struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		p.logger.Errorf("failed to decode ack: %v", err)
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.ackChans[m.MessageID]; ok {
		select {
		case ch <- struct{}{}:
		default:
		}
		p.logger.Debugf("received ack %s", m.MessageID)
	}
}

// Publish sends payload to topic, retrying with exponential backoff. It
// returns the number of attempts made. When messageID is not empty an ack
// for it can later be awaited with WaitForAck.
func (p *PahoClient) Publish(ctx context.Context, topic, messageID string, payload []byte) (int, error) {
	if messageID != "" {
		p.mu.Lock()
		p.ackChans[messageID] = make(chan struct{}, 1)
		p.mu.Unlock()
	}
	var err error
	attempt := 0
	for ; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, p.retain, payload)
		token.Wait()
		if err = token.Error(); err == nil {
			p.logger.Debugf("published %s", topic)
			return attempt + 1, nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, err)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			p.forget(messageID)
			return attempt + 1, ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	p.forget(messageID)
	return attempt + 1, err
}

func (p *PahoClient) forget(messageID string) {
	if messageID == "" {
		return
	}
	p.mu.Lock()
	delete(p.ackChans, messageID)
	p.mu.Unlock()
}

// WaitForAck blocks until an ack for messageID arrives or timeout elapses.
func (p *PahoClient) WaitForAck(messageID string, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	ch := p.ackChans[messageID]
	p.mu.Unlock()
	if ch == nil {
		return false, fmt.Errorf("unknown message %s", messageID)
	}
	defer p.forget(messageID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return true, nil
	case <-timer.C:
		return false, ErrAckTimeout
	}
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoClient) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
