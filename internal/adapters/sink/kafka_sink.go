package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// messageWriter is the subset of *kafka.Writer the sink needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes one message per classified record, keyed by device ID
// so that a device's results stay ordered within a partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// ResultMessage is the JSON value of each published message.
type ResultMessage struct {
	BatchID   string             `json:"batch_id"`
	DeviceID  string             `json:"device_id"`
	Timestamp time.Time          `json:"ts"`
	Values    map[string]float64 `json:"values,omitempty"`
	Outcome   domain.Outcome     `json:"outcome"`
	Attempts  int                `json:"attempts"`
}

func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka sink: topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		RequiredAcks: kafka.RequireAll,
		Balancer:     &kafka.Hash{},
	}
	return &KafkaSink{writer: w, topic: cfg.Topic}, nil
}

func newKafkaSinkWithWriter(w messageWriter, topic string) *KafkaSink {
	return &KafkaSink{writer: w, topic: topic}
}

func (k *KafkaSink) Name() string { return "kafka:" + k.topic }

func (k *KafkaSink) WriteResult(ctx context.Context, res *domain.BatchResult) error {
	if res == nil || res.Batch.Len() == 0 {
		return nil
	}
	if len(res.Outcomes) != res.Batch.Len() {
		return fmt.Errorf("batch %s: %d outcomes for %d records", res.Batch.ID, len(res.Outcomes), res.Batch.Len())
	}

	msgs := make([]kafka.Message, 0, res.Batch.Len())
	for i, r := range res.Batch.Records {
		data, err := json.Marshal(ResultMessage{
			BatchID:   res.Batch.ID,
			DeviceID:  r.DeviceID,
			Timestamp: r.Timestamp,
			Values:    r.Values,
			Outcome:   res.Outcomes[i],
			Attempts:  res.Attempts,
		})
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.DeviceID),
			Value: data,
			Time:  res.Batch.FlushedAt,
		})
	}

	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

var _ ports.ResultSink = (*KafkaSink)(nil)
