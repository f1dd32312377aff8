package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"irrigation_controller/internal/config"
)

func TestBoard_ActiveLow(t *testing.T) {
	b := NewBoard()
	ctx := context.Background()

	if err := b.Set(ctx, 14, true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if lvl, _ := b.Level(14); lvl != LevelEnergized {
		t.Fatalf("active relay must be driven low, got %d", lvl)
	}
	if err := b.Set(ctx, 14, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if lvl, _ := b.Level(14); lvl != LevelDeenergized {
		t.Fatalf("inactive relay must be driven high, got %d", lvl)
	}
	if _, ok := b.Level(99); ok {
		t.Fatalf("untouched pin should report not driven")
	}
}

func TestBoard_FaultInjection(t *testing.T) {
	b := NewBoard()
	b.FailPin(13)
	err := b.Set(context.Background(), 13, true)
	if !errors.Is(err, ErrPinFault) {
		t.Fatalf("expected ErrPinFault, got %v", err)
	}
	if b.Active(13) {
		t.Fatalf("faulty write must not change level")
	}
	b.ClearFault(13)
	if err := b.Set(context.Background(), 13, true); err != nil {
		t.Fatalf("Set after ClearFault: %v", err)
	}
	if b.Writes() != 1 {
		t.Fatalf("writes = %d, want 1", b.Writes())
	}
}

// ---- MQTT fakes ----

type fakeToken struct {
	err     error
	timeout bool
	done    chan struct{}
}

func (t *fakeToken) Wait() bool                     { return !t.timeout }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *fakeToken) Done() <-chan struct{} {
	if t.done == nil {
		t.done = make(chan struct{})
		close(t.done)
	}
	return t.done
}
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  interface{}
}

type fakePublisher struct {
	connected bool
	token     *fakeToken
	sent      []published
}

func (f *fakePublisher) IsConnected() bool { return f.connected }
func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	f.sent = append(f.sent, published{topic, qos, retained, payload})
	if f.token == nil {
		return &fakeToken{}
	}
	return f.token
}

func TestMQTTDriver_PublishesLevel(t *testing.T) {
	pub := &fakePublisher{connected: true}
	d := newMQTTDriver(pub, config.MQTTConfig{TopicPrefix: "garden/", QoS: 1, Retained: true})

	if err := d.Set(context.Background(), 15, true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := d.Set(context.Background(), 15, false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(pub.sent) != 2 {
		t.Fatalf("published %d messages, want 2", len(pub.sent))
	}
	first := pub.sent[0]
	if first.topic != "garden/relay/15/set" || first.qos != 1 || !first.retained || first.payload != "0" {
		t.Fatalf("unexpected first publish: %+v", first)
	}
	if pub.sent[1].payload != "1" {
		t.Fatalf("de-energize must publish level 1, got %v", pub.sent[1].payload)
	}
}

func TestMQTTDriver_Errors(t *testing.T) {
	tests := []struct {
		name string
		pub  *fakePublisher
		want error
	}{
		{"not connected", &fakePublisher{connected: false}, ErrNotConnected},
		{"timeout", &fakePublisher{connected: true, token: &fakeToken{timeout: true}}, ErrPublishFailed},
		{"broker error", &fakePublisher{connected: true, token: &fakeToken{err: errors.New("boom")}}, ErrPublishFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newMQTTDriver(tt.pub, config.MQTTConfig{TopicPrefix: "irrigation"})
			if err := d.Set(context.Background(), 3, true); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
