// Package publisher exports snapshots to Home Assistant over MQTT.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/theirongolddev/tburn/internal/config"
	"github.com/theirongolddev/tburn/internal/model"
)

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

// Publisher sends Home Assistant discovery configs and metric state.
type Publisher struct {
	client          client
	topicPrefix     string
	discoveryPrefix string

	mu         sync.Mutex
	discovered map[string]bool // config topic -> published
}

// New connects to the broker described by cfg.
func New(cfg config.MQTTConfig) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("publisher: MQTT broker address is required when enabled")
	}

	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		port := cfg.Port
		if port == 0 {
			port = 1883
		}
		if !strings.Contains(broker, ":") {
			broker = fmt.Sprintf("%s:%d", broker, port)
		}
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID("tburn-" + uuid.NewString()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("publisher: connecting to MQTT broker: %w", token.Error())
	}
	return newPublisher(c, cfg), nil
}

func newPublisher(c client, cfg config.MQTTConfig) *Publisher {
	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "tburn"
	}
	discovery := cfg.DiscoveryPrefix
	if discovery == "" {
		discovery = "homeassistant"
	}
	return &Publisher{
		client:          c,
		topicPrefix:     strings.TrimRight(prefix, "/"),
		discoveryPrefix: strings.TrimRight(discovery, "/"),
		discovered:      make(map[string]bool),
	}
}

// Name implements daemon.Sink.
func (p *Publisher) Name() string { return "mqtt" }

// Publish sends discovery configs for newly enabled metrics, then the state
// and peak attributes.
func (p *Publisher) Publish(ctx context.Context, snap *model.Snapshot) error {
	if snap == nil {
		return nil
	}
	for _, msg := range p.pendingDiscovery(snap) {
		if err := p.send(ctx, msg.topic, true, msg.payload); err != nil {
			return err
		}
		p.markDiscovered(msg.topic)
	}

	state, err := statePayload(snap)
	if err != nil {
		return err
	}
	if err := p.send(ctx, p.stateTopic(snap.Home.ID), true, state); err != nil {
		return err
	}

	attrs, err := json.Marshal(peakAttrs(snap.Peak))
	if err != nil {
		return fmt.Errorf("publisher: encoding peak attributes: %w", err)
	}
	return p.send(ctx, p.attrsTopic(snap.Home.ID), true, attrs)
}

// Close disconnects from the MQTT broker.
func (p *Publisher) Close() error {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
	return nil
}

func (p *Publisher) send(ctx context.Context, topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("publisher: publishing %s: %w", topic, ctx.Err())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publisher: publishing %s: %w", topic, err)
	}
	return nil
}

type message struct {
	topic   string
	payload []byte
}

func (p *Publisher) pendingDiscovery(snap *model.Snapshot) []message {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []message
	for _, msg := range discoveryMessages(p.discoveryPrefix, p.topicPrefix, snap) {
		if !p.discovered[msg.topic] {
			out = append(out, msg)
		}
	}
	return out
}

func (p *Publisher) markDiscovered(topic string) {
	p.mu.Lock()
	p.discovered[topic] = true
	p.mu.Unlock()
}

func (p *Publisher) stateTopic(homeID string) string {
	return fmt.Sprintf("%s/%s/state", p.topicPrefix, nodeID(homeID))
}

func (p *Publisher) attrsTopic(homeID string) string {
	return fmt.Sprintf("%s/%s/peak_consumption/attributes", p.topicPrefix, nodeID(homeID))
}

// nodeID turns a home id into a topic-safe identifier.
func nodeID(homeID string) string {
	if homeID == "" {
		return "home"
	}
	return strings.ReplaceAll(homeID, "-", "")
}

type haDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

type haSensorConfig struct {
	Name                string   `json:"name"`
	UniqueID            string   `json:"unique_id"`
	StateTopic          string   `json:"state_topic"`
	ValueTemplate       string   `json:"value_template"`
	UnitOfMeasurement   string   `json:"unit_of_measurement,omitempty"`
	DeviceClass         string   `json:"device_class,omitempty"`
	StateClass          string   `json:"state_class,omitempty"`
	JSONAttributesTopic string   `json:"json_attributes_topic,omitempty"`
	Device              haDevice `json:"device"`
}

// discoveryMessages builds one retained sensor config per enabled metric.
func discoveryMessages(discoveryPrefix, topicPrefix string, snap *model.Snapshot) []message {
	node := nodeID(snap.Home.ID)
	name := snap.Home.Name
	if name == "" {
		name = "Tibber"
	}
	device := haDevice{
		Identifiers:  []string{"tburn_" + node},
		Name:         name,
		Manufacturer: "Tibber",
		Model:        "tburn",
	}
	stateTopic := fmt.Sprintf("%s/%s/state", topicPrefix, node)

	out := make([]message, 0, len(snap.Enabled))
	for _, key := range snap.Enabled {
		desc, ok := model.Describe(key)
		if !ok {
			continue
		}
		cfg := haSensorConfig{
			Name:              desc.Name,
			UniqueID:          fmt.Sprintf("tburn_%s_%s", node, key),
			StateTopic:        stateTopic,
			ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", key),
			UnitOfMeasurement: snap.Home.UnitLabel(desc.Unit),
			Device:            device,
		}
		switch desc.Unit {
		case model.UnitEnergy:
			cfg.DeviceClass = "energy"
			cfg.StateClass = "measurement"
		case model.UnitMonetary:
			cfg.DeviceClass = "monetary"
		default:
			cfg.StateClass = "measurement"
		}
		if key == model.PeakConsumption {
			cfg.JSONAttributesTopic = fmt.Sprintf("%s/%s/peak_consumption/attributes", topicPrefix, node)
		}
		payload, err := json.Marshal(cfg)
		if err != nil {
			continue
		}
		out = append(out, message{
			topic:   fmt.Sprintf("%s/sensor/tburn_%s/%s/config", discoveryPrefix, node, key),
			payload: payload,
		})
	}
	return out
}

// statePayload encodes enabled metrics as one JSON object. Absent values
// are null so Home Assistant marks the sensor unknown.
func statePayload(snap *model.Snapshot) ([]byte, error) {
	state := make(map[model.MetricKey]*float64, len(snap.Enabled))
	for _, key := range snap.Enabled {
		state[key] = snap.Value(key)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("publisher: encoding state: %w", err)
	}
	return data, nil
}

func peakAttrs(p *model.PeakAttrs) model.PeakAttrs {
	if p == nil {
		return model.PeakAttrs{Dates: []time.Time{}, Consumptions: []float64{}}
	}
	return *p
}
