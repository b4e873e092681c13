package mqtt

// Message is a publish recorded by FakeClient.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient is an in-memory Client for tests.
type FakeClient struct {
	// Connected is the current connection state.
	Connected bool

	// ConnectErrors are returned by successive Connect calls. Once
	// exhausted, Connect succeeds.
	ConnectErrors []error

	// PublishErrors are returned by successive Publish calls. Once
	// exhausted, Publish succeeds.
	PublishErrors []error

	// SlowPublishes is the number of upcoming publishes that are recorded
	// in Messages but report ErrPublishTimeout, like a broker that
	// acknowledges late.
	SlowPublishes int

	// Messages contains all publishes that reached the broker, in order.
	Messages []Message

	ConnectCalls int
	PublishCalls int
	Disconnects  int
}

// NewFakeClient creates a disconnected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// IsConnected returns the Connected field.
func (f *FakeClient) IsConnected() bool {
	return f.Connected
}

// Connect pops the next ConnectErrors entry, or connects once they run out.
func (f *FakeClient) Connect() error {
	f.ConnectCalls++
	if len(f.ConnectErrors) > 0 {
		err := f.ConnectErrors[0]
		f.ConnectErrors = f.ConnectErrors[1:]
		if err != nil {
			return err
		}
	}
	f.Connected = true
	return nil
}

// Publish pops the next PublishErrors entry, or records the message once
// they run out.
func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.PublishCalls++
	if len(f.PublishErrors) > 0 {
		err := f.PublishErrors[0]
		f.PublishErrors = f.PublishErrors[1:]
		if err != nil {
			return err
		}
	}
	f.Messages = append(f.Messages, Message{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	if f.SlowPublishes > 0 {
		f.SlowPublishes--
		return ErrPublishTimeout
	}
	return nil
}

// Disconnect counts the call and drops the connection.
func (f *FakeClient) Disconnect() {
	f.Disconnects++
	f.Connected = false
}

// Topics returns the topic of each recorded message.
func (f *FakeClient) Topics() []string {
	out := make([]string, len(f.Messages))
	for i, m := range f.Messages {
		out[i] = m.Topic
	}
	return out
}
