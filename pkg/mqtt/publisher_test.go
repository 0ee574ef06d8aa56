package mqtt

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/urmzd/alpacaswitch/pkg/device"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error { return t.err }

type message struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	connected    bool
	err          error
	messages     []message
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b []byte
	switch v := payload.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	}
	c.messages = append(c.messages, message{topic: topic, retained: retained, payload: b})
	return newToken(c.err)
}

func (c *fakeClient) IsConnected() bool { return c.connected }

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func TestTopics(t *testing.T) {
	topics := Topics{Prefix: "observatory"}
	tests := []struct {
		address string
		want    string
	}{
		{"10.0.0.3:9999", "observatory/switch/10.0.0.3_9999/state"},
		{"/dev/ttyUSB0#2", "observatory/switch/dev_ttyUSB0_2/state"},
		{"plug+1", "observatory/switch/plug_1/state"},
	}
	for _, tt := range tests {
		if got := topics.SwitchState(tt.address); got != tt.want {
			t.Errorf("SwitchState(%q) = %q, want %q", tt.address, got, tt.want)
		}
	}
	if topics.Status() != "observatory/status" {
		t.Errorf("Status() = %q", topics.Status())
	}
}

func TestPublish(t *testing.T) {
	fc := &fakeClient{connected: true}
	p := newPublisher(fc, Config{TopicPrefix: "alpaca", QoS: 1})
	at := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	info := device.Info{Address: "10.0.0.3:9999", Name: "Mount", Model: "HS103"}

	if err := p.Publish(info, true, at); err != nil {
		t.Fatal(err)
	}
	if len(fc.messages) != 1 {
		t.Fatalf("messages = %d", len(fc.messages))
	}
	m := fc.messages[0]
	if m.topic != "alpaca/switch/10.0.0.3_9999/state" || !m.retained {
		t.Errorf("message = %+v", m)
	}
	var body StatePayload
	if err := json.Unmarshal(m.payload, &body); err != nil {
		t.Fatal(err)
	}
	want := StatePayload{Name: "Mount", Address: "10.0.0.3:9999", Model: "HS103", State: "on", Timestamp: "2024-03-01T20:00:00Z"}
	if body != want {
		t.Errorf("payload = %+v, want %+v", body, want)
	}
}

func TestPublish_Errors(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, Config{TopicPrefix: "alpaca"})
	if err := p.Publish(device.Info{}, true, time.Now()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}

	fc.connected = true
	fc.err = errors.New("broker said no")
	if err := p.Publish(device.Info{}, true, time.Now()); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("err = %v, want ErrPublishFailed", err)
	}

	// StateChanged swallows the failure.
	p.StateChanged(device.Info{Name: "x"}, false, time.Now())
}

func TestClose(t *testing.T) {
	fc := &fakeClient{connected: true}
	p := newPublisher(fc, Config{TopicPrefix: "alpaca"})
	p.Close()

	if !fc.disconnected {
		t.Error("not disconnected")
	}
	if len(fc.messages) != 1 || fc.messages[0].topic != "alpaca/status" || string(fc.messages[0].payload) != "offline" {
		t.Errorf("messages = %+v", fc.messages)
	}
}
