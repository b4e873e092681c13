package mqtt

import (
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Error codes reported in a GaveUp outcome. Positive values are CONNACK
// return codes from the broker (1 bad protocol .. 5 not authorised).
const (
	CodeConnectionTimeout = -4
	CodeConnectionLost    = -3
	CodeConnectFailed     = -2
	CodeNoLink            = -5
	CodePublishFailed     = -6
	CodePublishTimeout    = -7
)

// ErrPublishTimeout means the client accepted a message but the broker did
// not acknowledge it in time. The client keeps it queued and may still
// deliver it, so it must not be published again.
var ErrPublishTimeout = errors.New("publish not acknowledged in time")

// ConnectError is a failed connection attempt with its error code.
type ConnectError struct {
	Code int
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect failed with code %d: %v", e.Code, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// errorCode extracts the code from a connect error.
func errorCode(err error) int {
	var ce *ConnectError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return CodeConnectFailed
}

// Client is the broker connection the gateway drives.
type Client interface {
	IsConnected() bool
	// Connect makes a single connection attempt.
	Connect() error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Disconnect()
}

// ClientOptions configures a PahoClient.
type ClientOptions struct {
	Broker         string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
	WillTopic      string
}

// PahoClient talks to an actual MQTT broker.
type PahoClient struct {
	client paho.Client
	opts   ClientOptions
}

// NewPahoClient creates a client. It does not connect; the gateway does that
// on first publish. Automatic reconnects are off so that every attempt is
// counted against the gateway's budget.
func NewPahoClient(o ClientOptions) *PahoClient {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = 5 * time.Second
	}
	if o.PublishTimeout <= 0 {
		o.PublishTimeout = 5 * time.Second
	}

	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetUsername(o.Username).
		SetPassword(o.Password).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetConnectTimeout(o.ConnectTimeout).
		SetCleanSession(true)
	if o.WillTopic != "" {
		opts.SetBinaryWill(o.WillTopic, WillPayload(), 1, true)
	}

	return &PahoClient{client: paho.NewClient(opts), opts: o}
}

// IsConnected reports whether the connection is currently open.
func (c *PahoClient) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Connect makes one connection attempt.
func (c *PahoClient) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(c.opts.ConnectTimeout) {
		return &ConnectError{Code: CodeConnectionTimeout, Err: errors.New("connection timeout")}
	}
	if err := token.Error(); err != nil {
		code := CodeConnectFailed
		if ct, ok := token.(*paho.ConnectToken); ok && ct.ReturnCode() != 0 {
			code = int(ct.ReturnCode())
		}
		return &ConnectError{Code: code, Err: err}
	}
	return nil
}

// Publish sends a payload and waits for it to be handed to the broker.
func (c *PahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(c.opts.PublishTimeout) {
		return fmt.Errorf("publish to %s: %w", topic, ErrPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Disconnect closes the connection.
func (c *PahoClient) Disconnect() {
	c.client.Disconnect(1000) // 1 second timeout
}
