// Package mqtt collects optical telemetry published as JSON on an MQTT topic.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

type Config struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (c *Config) ApplyDefaults() {
	if c.ClientID == "" {
		c.ClientID = "telemetry-ai-ops-edge"
	}
	if c.Topic == "" {
		c.Topic = "telemetry/optical/#"
	}
	if c.QoS > 2 {
		c.QoS = 1
	}
}

func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	return nil
}

// Collector subscribes to the telemetry topic and forwards each decoded
// message as a Record.
type Collector struct {
	cfg Config
	obs ports.Observability

	mu      sync.Mutex
	client  paho.Client
	cancel  context.CancelFunc
	started bool
	seq     uint64
}

func NewCollector(cfg Config, obs ports.Observability) (*Collector, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Collector{cfg: cfg, obs: obs}, nil
}

func (c *Collector) Start(out chan<- *domain.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return fmt.Errorf("mqtt collector already started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	handler := c.handler(ctx, out)

	opts := paho.NewClientOptions().
		AddBroker(c.cfg.Broker).
		SetClientID(c.cfg.ClientID).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(cl paho.Client) {
			// Subscriptions are lost on reconnect with a clean session.
			if tok := cl.Subscribe(c.cfg.Topic, c.cfg.QoS, handler); tok.Wait() && tok.Error() != nil {
				c.logError("mqtt_subscribe_failed", tok.Error())
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			c.logError("mqtt_connection_lost", err)
		})
	if c.cfg.Username != "" {
		opts.SetUsername(c.cfg.Username).SetPassword(c.cfg.Password)
	}

	client := paho.NewClient(opts)
	if tok := client.Connect(); tok.Wait() && tok.Error() != nil {
		cancel()
		return fmt.Errorf("mqtt connect %s: %w", c.cfg.Broker, tok.Error())
	}

	c.client = client
	c.cancel = cancel
	c.started = true
	return nil
}

func (c *Collector) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started {
		return nil
	}
	c.cancel()
	if tok := c.client.Unsubscribe(c.cfg.Topic); tok.WaitTimeout(2*time.Second) && tok.Error() != nil {
		c.logError("mqtt_unsubscribe_failed", tok.Error())
	}
	c.client.Disconnect(250)
	c.started = false
	c.client = nil
	return nil
}

func (c *Collector) handler(ctx context.Context, out chan<- *domain.Record) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		rec, err := DecodePayload(msg.Payload())
		if err != nil {
			c.logError("mqtt_decode_failed", err, ports.Field{Key: "topic", Value: msg.Topic()})
			return
		}
		c.mu.Lock()
		c.seq++
		rec.Seq = c.seq
		c.mu.Unlock()

		select {
		case <-ctx.Done():
		case out <- rec:
		}
	}
}

func (c *Collector) logError(msg string, err error, fields ...ports.Field) {
	if c.obs != nil {
		c.obs.LogError(msg, err, fields...)
	}
}

// flatPayload is the per-device message shape published by the field
// devices: metrics sit next to the device id.
type flatPayload struct {
	DeviceID   string             `json:"device_id"`
	Timestamp  *time.Time         `json:"ts"`
	Values     map[string]float64 `json:"values"`
	Wavelength *float64           `json:"wavelength"`
	OSNR       *float64           `json:"osnr"`
	BER        *float64           `json:"ber"`
	PowerDBM   *float64           `json:"power_dbm"`
}

// DecodePayload accepts either a Record document ({"device_id", "ts",
// "values"}) or a flat device document with the optical metrics as top-level
// fields. The timestamp defaults to now.
func DecodePayload(data []byte) (*domain.Record, error) {
	var p flatPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode telemetry payload: %w", err)
	}
	if p.DeviceID == "" {
		return nil, errors.New("decode telemetry payload: device_id is missing")
	}

	rec := &domain.Record{DeviceID: p.DeviceID, Values: make(map[string]float64, len(p.Values)+4)}
	for k, v := range p.Values {
		rec.Values[k] = v
	}
	set := func(key string, v *float64) {
		if v != nil {
			rec.Values[key] = *v
		}
	}
	set(domain.KeyWavelength, p.Wavelength)
	set(domain.KeyOSNR, p.OSNR)
	set(domain.KeyBER, p.BER)
	set(domain.KeyPowerDBM, p.PowerDBM)

	if p.Timestamp != nil {
		rec.Timestamp = p.Timestamp.UTC()
	} else {
		rec.Timestamp = time.Now().UTC()
	}
	return rec, nil
}

var _ ports.Collector = (*Collector)(nil)
