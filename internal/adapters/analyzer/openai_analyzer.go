// Package analyzer calls an LLM to classify telemetry records the local
// heuristic could not decide.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/abheet19/telemetry-ai-ops/internal/domain"
	"github.com/abheet19/telemetry-ai-ops/internal/ports"
)

const systemPrompt = "You are an expert optical systems engineer. " +
	"Analyze optical telemetry data to determine if each link is healthy or degraded. " +
	"If degraded, suggest one practical action (e.g., power balancing, re-routing). " +
	"Return concise, structured output per record."

type Config struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = openai.GPT4oMini
	}
	if c.Temperature == 0 {
		c.Temperature = 0.3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

// OpenAIAnalyzer sends all residual records of a batch in one chat
// completion and returns the raw reply.
type OpenAIAnalyzer struct {
	client *openai.Client
	cfg    Config
}

func NewOpenAIAnalyzer(cfg Config) (*OpenAIAnalyzer, error) {
	cfg.ApplyDefaults()
	if cfg.APIKey == "" {
		return nil, errors.New("openai analyzer: api key is required")
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIAnalyzer{client: openai.NewClientWithConfig(oc), cfg: cfg}, nil
}

func (a *OpenAIAnalyzer) Name() string { return "openai:" + a.cfg.Model }

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, records []*domain.Record) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(records)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildPrompt renders one line per record, in batch order.
func BuildPrompt(records []*domain.Record) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteByte('\n')
		}
		device := r.DeviceID
		if device == "" {
			device = "unknown"
		}
		fmt.Fprintf(&b, "Device %s: OSNR=%s dB, BER=%s, Power=%s dBm, Wavelength=%s nm.",
			device,
			metric(r, domain.KeyOSNR),
			metric(r, domain.KeyBER),
			metric(r, domain.KeyPowerDBM),
			metric(r, domain.KeyWavelength))
	}
	return b.String()
}

func metric(r *domain.Record, key string) string {
	v, ok := r.Value(key)
	if !ok {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var _ ports.Analyzer = (*OpenAIAnalyzer)(nil)
