package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/benmeehan/ups-bridge/internal/constants"
	"github.com/benmeehan/ups-bridge/internal/models"
	"github.com/benmeehan/ups-bridge/internal/poller"
	"github.com/benmeehan/ups-bridge/internal/sensors"
	"github.com/benmeehan/ups-bridge/pkg/identity"
	"github.com/benmeehan/ups-bridge/pkg/mqtt"
)

// Config holds topic layout and delivery settings.
type Config struct {
	TopicPrefix     string
	DiscoveryPrefix string
	QOS             byte
	PublishTimeout  time.Duration
}

// Publisher maps sensor definitions, snapshots and availability onto MQTT topics.
// It is the only place topic names are built.
type Publisher struct {
	cfg        Config
	mqttClient mqtt.MQTTClient
	registry   *sensors.Registry
	deviceInfo identity.DeviceInfoInterface
	logger     zerolog.Logger
}

// New returns a Publisher. Empty prefixes fall back to home/ups and homeassistant.
func New(cfg Config, mqttClient mqtt.MQTTClient, registry *sensors.Registry,
	deviceInfo identity.DeviceInfoInterface, logger zerolog.Logger) *Publisher {

	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = constants.DefaultTopicPrefix
	}
	if cfg.DiscoveryPrefix == "" {
		cfg.DiscoveryPrefix = constants.DefaultDiscoveryPrefix
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	cfg.DiscoveryPrefix = strings.TrimSuffix(cfg.DiscoveryPrefix, "/")

	return &Publisher{
		cfg:        cfg,
		mqttClient: mqttClient,
		registry:   registry,
		deviceInfo: deviceInfo,
		logger:     logger.With().Str("component", "publisher").Logger(),
	}
}

// MeasurementKey normalises a sensor name into a topic key: "Mains Voltage" -> "mains_voltage".
func MeasurementKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// StateTopic returns the state topic for a sensor name.
func (p *Publisher) StateTopic(name string) string {
	return p.cfg.TopicPrefix + "/" + MeasurementKey(name)
}

// AvailabilityTopic returns the retained online/offline topic.
func (p *Publisher) AvailabilityTopic() string {
	return p.cfg.TopicPrefix + "/" + constants.AvailabilitySuffix
}

func (p *Publisher) uniqueID(key string) string {
	return p.deviceInfo.GetUniqueIDBase() + "_" + key
}

// SensorDiscoveryTopic returns the discovery config topic for a sensor name.
func (p *Publisher) SensorDiscoveryTopic(name string) string {
	return fmt.Sprintf("%s/%s/%s/config", p.cfg.DiscoveryPrefix, constants.ComponentSensor, p.uniqueID(MeasurementKey(name)))
}

// AvailabilityDiscoveryTopic returns the discovery config topic of the availability binary sensor.
func (p *Publisher) AvailabilityDiscoveryTopic() string {
	return fmt.Sprintf("%s/%s/%s/config", p.cfg.DiscoveryPrefix, constants.ComponentBinarySensor, p.uniqueID(constants.AvailabilitySuffix))
}

func (p *Publisher) device() models.DiscoveryDevice {
	id := p.deviceInfo.GetDeviceIdentity()
	return models.DiscoveryDevice{
		Identifiers:  []string{p.deviceInfo.GetDeviceID()},
		Name:         id.Name,
		Manufacturer: id.Manufacturer,
		Model:        id.Model,
		SWVersion:    id.SWVersion,
	}
}

// PublishRegistration publishes retained discovery configs for every sensor
// and for the availability signal. Safe to repeat.
func (p *Publisher) PublishRegistration() error {
	device := p.device()
	var errs []error

	for _, def := range p.registry.Definitions() {
		key := MeasurementKey(def.Name)
		cfg := models.SensorDiscovery{
			Name:              def.Name,
			StateTopic:        p.StateTopic(def.Name),
			UnitOfMeasurement: def.Unit,
			DeviceClass:       def.DeviceClass,
			StateClass:        constants.StateClassMeasurement,
			UniqueID:          p.uniqueID(key),
			AvailabilityTopic: p.AvailabilityTopic(),
			Device:            device,
		}
		if err := p.publishJSON(p.SensorDiscoveryTopic(def.Name), cfg); err != nil {
			errs = append(errs, err)
			continue
		}
		p.logger.Debug().Str("sensor", def.Name).Msg("Discovery config sent")
	}

	status := models.BinarySensorDiscovery{
		Name:        constants.AvailabilityName,
		StateTopic:  p.AvailabilityTopic(),
		PayloadOn:   models.Online.Payload(),
		PayloadOff:  models.Offline.Payload(),
		DeviceClass: constants.DeviceClassConnectivity,
		UniqueID:    p.uniqueID(constants.AvailabilitySuffix),
		Device:      device,
	}
	if err := p.publishJSON(p.AvailabilityDiscoveryTopic(), status); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.logger.Info().Int("sensors", p.registry.Len()).Msg("Discovery configs published")
	return nil
}

// PublishSnapshot publishes one non-retained value per measurement.
func (p *Publisher) PublishSnapshot(s poller.Snapshot) error {
	var errs []error

	for _, name := range s.Names() {
		m, _ := s.Get(name)
		topic := p.StateTopic(name)
		payload := FormatValue(m.Value)

		if err := p.publish(topic, false, payload); err != nil {
			errs = append(errs, err)
			continue
		}
		p.logger.Debug().Str("topic", topic).Str("value", payload).Msg("Measurement published")
	}

	return errors.Join(errs...)
}

// PublishAvailability publishes the retained availability state.
func (p *Publisher) PublishAvailability(a models.Availability) error {
	if err := p.publish(p.AvailabilityTopic(), true, a.Payload()); err != nil {
		return err
	}
	p.logger.Info().Str("availability", a.Payload()).Msg("Published UPS availability")
	return nil
}

// FormatValue renders a measurement with two decimals.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to serialize payload for %s: %w", topic, err)
	}
	return p.publish(topic, true, payload)
}

// publish waits at most PublishTimeout. paho queues while reconnecting, so a
// timeout is logged and reported but never blocks the poll loop.
func (p *Publisher) publish(topic string, retained bool, payload interface{}) error {
	token := p.mqttClient.Publish(topic, p.cfg.QOS, retained, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		p.logger.Warn().Str("topic", topic).Dur("timeout", p.cfg.PublishTimeout).Msg("Publish timed out")
		return fmt.Errorf("publish to %s timed out after %s", topic, p.cfg.PublishTimeout)
	}
	if err := token.Error(); err != nil {
		p.logger.Error().Err(err).Str("topic", topic).Msg("Failed to publish")
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
