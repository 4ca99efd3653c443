package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"pvyield/internal/yield"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const publishTimeout = 10 * time.Second

// client is the part of the paho client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	IsConnected() bool
	Disconnect(quiesce uint)
}

type Publisher struct {
	client      client
	topicPrefix string
	enabled     bool
	logger      *zap.Logger
}

type PublisherConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Enabled     bool
}

// Summary is the retained JSON document published per calculation.
type Summary struct {
	ID                 string               `json:"id"`
	Mode               string               `json:"mode"`
	Latitude           float64              `json:"latitude"`
	Longitude          float64              `json:"longitude"`
	CapacityKW         float64              `json:"capacity_kw"`
	AdjustedCapacityKW float64              `json:"adjusted_capacity_kw"`
	ModuleClass        string               `json:"module_class"`
	AnnualEnergyKWh    float64              `json:"annual_energy_kwh"`
	SpecificYield      float64              `json:"specific_yield"`
	CapacityFactor     float64              `json:"capacity_factor"`
	Monthly            []yield.MonthlyValue `json:"monthly"`
	YearlyProduction   []float64            `json:"yearly_production"`
	Arrays             int                  `json:"arrays"`
	PublishedAt        time.Time            `json:"published_at"`
}

func NewPublisher(cfg PublisherConfig, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return &Publisher{enabled: false, logger: logger}, nil
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetConnectionLostHandler(func(c mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", zap.Error(err))
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			logger.Info("MQTT connected", zap.String("broker", cfg.Broker))
		})

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return newPublisher(c, cfg.TopicPrefix, logger), nil
}

func newPublisher(c client, prefix string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client:      c,
		topicPrefix: prefix,
		enabled:     true,
		logger:      logger,
	}
}

// NewSummary condenses a calculation result into its published form.
func NewSummary(result *yield.CalculationResult, now time.Time) Summary {
	return Summary{
		ID:                 result.ID,
		Mode:               result.Mode,
		Latitude:           result.Location.Latitude,
		Longitude:          result.Location.Longitude,
		CapacityKW:         result.System.CalculatedCapacityKW,
		AdjustedCapacityKW: result.System.AdjustedCapacityKW,
		ModuleClass:        result.System.ModuleClass.ClassName,
		AnnualEnergyKWh:    result.Energy.Metrics.TotalYearly,
		SpecificYield:      result.Performance.SpecificYield,
		CapacityFactor:     result.Performance.CapacityFactor,
		Monthly:            result.Energy.Monthly,
		YearlyProduction:   result.YearlyProduction,
		Arrays:             len(result.System.Arrays),
		PublishedAt:        now.UTC(),
	}
}

func (p *Publisher) topic(parts ...string) string {
	topic := p.topicPrefix
	for _, part := range parts {
		topic += "/" + part
	}
	return topic
}

// Publish sends the summary of result. Failures are logged and never
// returned; a calculation that completed stays completed.
func (p *Publisher) Publish(result *yield.CalculationResult) {
	if !p.enabled || result == nil {
		return
	}

	summary := NewSummary(result, time.Now())
	payload, err := json.Marshal(summary)
	if err != nil {
		p.logger.Warn("Failed to encode calculation summary", zap.String("id", result.ID), zap.Error(err))
		return
	}

	p.send(p.topic("calculations", "latest"), true, payload)
	p.send(p.topic("calculations", result.ID), true, payload)

	scalars := []struct {
		name  string
		value float64
	}{
		{"annual_energy_kwh", summary.AnnualEnergyKWh},
		{"specific_yield", summary.SpecificYield},
		{"capacity_factor", summary.CapacityFactor},
	}
	for _, s := range scalars {
		p.send(p.topic(s.name), true, fmt.Sprintf("%.2f", s.value))
	}
}

func (p *Publisher) send(topic string, retained bool, payload interface{}) {
	token := p.client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn("MQTT publish timed out", zap.String("topic", topic))
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("MQTT publish failed", zap.String("topic", topic), zap.Error(err))
	}
}

func (p *Publisher) IsConnected() bool {
	if !p.enabled {
		return false
	}
	return p.client.IsConnected()
}

func (p *Publisher) Close() {
	if p.enabled && p.client != nil {
		p.client.Disconnect(1000)
	}
}
