package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/model"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	retained bool
	payload  []byte
}

type fakeClient struct {
	msgs         []published
	err          error
	disconnected bool
}

func (f *fakeClient) Publish(topic string, _ byte, retained bool, payload interface{}) mqtt.Token {
	f.msgs = append(f.msgs, published{topic: topic, retained: retained, payload: payload.([]byte)})
	return doneToken{err: f.err}
}
func (f *fakeClient) IsConnected() bool { return true }
func (f *fakeClient) Disconnect(uint)   { f.disconnected = true }

var _ mqtt.Token = doneToken{}

func testSnapshot() *model.Snapshot {
	return &model.Snapshot{
		Home: model.HomeInfo{ID: "abc-123", Name: "Cabin", Currency: "NOK", PriceUnit: "NOK/kWh"},
		Values: map[model.MetricKey]*float64{
			model.PeakConsumption:        model.Float(4.2),
			model.MonthlyCostWithSubsidy: model.Float(512.5),
			model.EstSubsidy:             nil,
		},
		Enabled: []model.MetricKey{model.PeakConsumption, model.MonthlyCostWithSubsidy, model.EstSubsidy},
		Peak: &model.PeakAttrs{
			Dates:        []time.Time{time.Date(2025, 3, 5, 18, 0, 0, 0, time.UTC)},
			Consumptions: []float64{4.2},
		},
	}
}

func TestPublish_DiscoveryOnceThenState(t *testing.T) {
	fc := &fakeClient{}
	p := newPublisher(fc, config.MQTTConfig{TopicPrefix: "tburn/", DiscoveryPrefix: "homeassistant"})
	snap := testSnapshot()

	if err := p.Publish(context.Background(), snap); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	// 3 discovery configs, state, attributes.
	if len(fc.msgs) != 5 {
		t.Fatalf("published %d messages, want 5", len(fc.msgs))
	}
	for _, m := range fc.msgs[:3] {
		if !strings.HasPrefix(m.topic, "homeassistant/sensor/tburn_abc123/") || !strings.HasSuffix(m.topic, "/config") {
			t.Fatalf("discovery topic = %q", m.topic)
		}
		if !m.retained {
			t.Fatalf("discovery %q not retained", m.topic)
		}
	}

	state := fc.msgs[3]
	if state.topic != "tburn/abc123/state" {
		t.Fatalf("state topic = %q", state.topic)
	}
	var values map[string]*float64
	if err := json.Unmarshal(state.payload, &values); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if v := values["monthly_cost_with_subsidy"]; v == nil || *v != 512.5 {
		t.Fatalf("monthly_cost_with_subsidy = %v, want 512.5", v)
	}
	if v, ok := values["est_subsidy"]; !ok || v != nil {
		t.Fatalf("est_subsidy = %v, %v, want explicit null", v, ok)
	}

	if !strings.Contains(string(fc.msgs[4].payload), `"peak_consumptions":[4.2]`) {
		t.Fatalf("attributes payload = %s", fc.msgs[4].payload)
	}

	fc.msgs = nil
	if err := p.Publish(context.Background(), snap); err != nil {
		t.Fatalf("second Publish: %v", err)
	}
	if len(fc.msgs) != 2 {
		t.Fatalf("second publish sent %d messages, want 2 (no repeated discovery)", len(fc.msgs))
	}
}

func TestDiscoveryMessages_Units(t *testing.T) {
	snap := testSnapshot()
	msgs := discoveryMessages("homeassistant", "tburn", snap)

	byKey := make(map[string]haSensorConfig)
	for _, m := range msgs {
		var cfg haSensorConfig
		if err := json.Unmarshal(m.payload, &cfg); err != nil {
			t.Fatalf("decode %s: %v", m.topic, err)
		}
		byKey[cfg.UniqueID] = cfg
	}

	peak := byKey["tburn_abc123_peak_consumption"]
	if peak.UnitOfMeasurement != "kWh" || peak.DeviceClass != "energy" {
		t.Fatalf("peak config = %+v", peak)
	}
	if peak.JSONAttributesTopic != "tburn/abc123/peak_consumption/attributes" {
		t.Fatalf("peak attributes topic = %q", peak.JSONAttributesTopic)
	}
	cost := byKey["tburn_abc123_monthly_cost_with_subsidy"]
	if cost.UnitOfMeasurement != "NOK" || cost.DeviceClass != "monetary" {
		t.Fatalf("cost config = %+v", cost)
	}
	subsidy := byKey["tburn_abc123_est_subsidy"]
	if subsidy.UnitOfMeasurement != "NOK/kWh" {
		t.Fatalf("subsidy unit = %q, want NOK/kWh", subsidy.UnitOfMeasurement)
	}
}

func TestPublish_TokenError(t *testing.T) {
	fc := &fakeClient{err: errors.New("not connected")}
	p := newPublisher(fc, config.MQTTConfig{})

	err := p.Publish(context.Background(), testSnapshot())
	if err == nil || !strings.Contains(err.Error(), "not connected") {
		t.Fatalf("err = %v, want token error", err)
	}
	// Failed discovery is retried on the next publish.
	fc.err = nil
	fc.msgs = nil
	if err := p.Publish(context.Background(), testSnapshot()); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(fc.msgs) != 5 {
		t.Fatalf("published %d messages, want 5", len(fc.msgs))
	}
	if err := p.Close(); err != nil || !fc.disconnected {
		t.Fatalf("Close() = %v, disconnected = %v", err, fc.disconnected)
	}
}

func TestNew_RequiresBroker(t *testing.T) {
	if _, err := New(config.MQTTConfig{}); err == nil {
		t.Fatal("New() accepted an empty broker")
	}
}
