package publisher_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/benmeehan/ups-bridge/internal/codec"
	"github.com/benmeehan/ups-bridge/internal/mocks"
	"github.com/benmeehan/ups-bridge/internal/models"
	"github.com/benmeehan/ups-bridge/internal/poller"
	"github.com/benmeehan/ups-bridge/internal/publisher"
	"github.com/benmeehan/ups-bridge/internal/sensors"
	"github.com/benmeehan/ups-bridge/pkg/identity"
)

func newTestDeviceInfo() *identity.DeviceInfo {
	d := identity.NewDeviceInfo("", nil)
	_ = d.LoadDeviceInfo()
	d.Identity.SWVersion = "1.4.0"
	return d
}

func newTestPublisher(client *mocks.MQTTClient) *publisher.Publisher {
	return publisher.New(
		publisher.Config{TopicPrefix: "home/ups", DiscoveryPrefix: "homeassistant", QOS: 0, PublishTimeout: time.Second},
		client,
		sensors.Default(),
		newTestDeviceInfo(),
		zerolog.Nop(),
	)
}

func snapshotOf(t *testing.T, frames ...[]byte) poller.Snapshot {
	t.Helper()
	registry := sensors.Default()
	c := codec.New(registry)
	agg := poller.NewAggregator(registry)
	agg.StartCycle()
	for _, f := range frames {
		agg.Record(c.Decode(f))
	}
	return agg.FinishCycle()
}

func TestMeasurementKey(t *testing.T) {
	assert.Equal(t, "mains_voltage", publisher.MeasurementKey("Mains Voltage"))
	assert.Equal(t, "battery_charge_level", publisher.MeasurementKey("Battery Charge Level"))
	assert.Equal(t, "load_percentage", publisher.MeasurementKey("load percentage"))
}

func TestTopics(t *testing.T) {
	p := newTestPublisher(new(mocks.MQTTClient))

	assert.Equal(t, "home/ups/mains_voltage", p.StateTopic("Mains Voltage"))
	assert.Equal(t, "home/ups/status", p.AvailabilityTopic())
	assert.Equal(t, "homeassistant/sensor/home_ups_mains_voltage/config", p.SensorDiscoveryTopic("Mains Voltage"))
	assert.Equal(t, "homeassistant/binary_sensor/home_ups_status/config", p.AvailabilityDiscoveryTopic())
}

func TestTopics_TrailingSlashAndDefaults(t *testing.T) {
	p := publisher.New(publisher.Config{TopicPrefix: "garage/ups/"}, new(mocks.MQTTClient),
		sensors.Default(), newTestDeviceInfo(), zerolog.Nop())

	assert.Equal(t, "garage/ups/status", p.AvailabilityTopic())
	assert.Equal(t, "homeassistant/binary_sensor/home_ups_status/config", p.AvailabilityDiscoveryTopic())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "10.00", publisher.FormatValue(10))
	assert.Equal(t, "101.01", publisher.FormatValue(101.01))
	assert.Equal(t, "0.00", publisher.FormatValue(0))
}

func TestPublishSnapshot_MainsVoltage(t *testing.T) {
	client := new(mocks.MQTTClient)
	client.On("Publish", "home/ups/mains_voltage", byte(0), false, "10.00").Return(mocks.NewCompletedToken(nil)).Once()

	p := newTestPublisher(client)
	err := p.PublishSnapshot(snapshotOf(t, []byte{0xFF, 0xFF, 0xFF, 0x08, 0x0C, 0x01, 0x64, 0x00}))

	assert.NoError(t, err)
	client.AssertExpectations(t)
}

func TestPublishSnapshot_BatteryChargeLevel(t *testing.T) {
	client := new(mocks.MQTTClient)
	client.On("Publish", "home/ups/battery_charge_level", byte(0), false, "101.01").Return(mocks.NewCompletedToken(nil)).Once()

	p := newTestPublisher(client)
	err := p.PublishSnapshot(snapshotOf(t, []byte{0xFF, 0xFF, 0xFF, 0x3C, 0x0C, 0x01, 0x30, 0x75}))

	assert.NoError(t, err)
	client.AssertExpectations(t)
}

func TestPublishSnapshot_EmptyPublishesNothing(t *testing.T) {
	client := new(mocks.MQTTClient)

	p := newTestPublisher(client)
	assert.NoError(t, p.PublishSnapshot(snapshotOf(t)))
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPublishSnapshot_ContinuesAfterFailure(t *testing.T) {
	client := new(mocks.MQTTClient)
	client.On("Publish", "home/ups/battery_voltage", byte(0), false, mock.Anything).
		Return(mocks.NewCompletedToken(errors.New("not connected"))).Once()
	client.On("Publish", "home/ups/mains_voltage", byte(0), false, "10.00").
		Return(mocks.NewCompletedToken(nil)).Once()

	p := newTestPublisher(client)
	err := p.PublishSnapshot(snapshotOf(t,
		[]byte{0xFF, 0xFF, 0xFF, 0x08, 0x0C, 0x01, 0x64, 0x00},
		[]byte{0xFF, 0xFF, 0xFF, 0x06, 0x0C, 0x01, 0xD0, 0x04},
	))

	assert.Error(t, err)
	client.AssertExpectations(t)
}

func TestPublishAvailability(t *testing.T) {
	client := new(mocks.MQTTClient)
	client.On("Publish", "home/ups/status", byte(0), true, "online").Return(mocks.NewCompletedToken(nil)).Once()
	client.On("Publish", "home/ups/status", byte(0), true, "offline").Return(mocks.NewCompletedToken(nil)).Once()

	p := newTestPublisher(client)
	assert.NoError(t, p.PublishAvailability(models.Online))
	assert.NoError(t, p.PublishAvailability(models.Offline))
	client.AssertExpectations(t)
}

func TestPublishAvailability_Timeout(t *testing.T) {
	token := new(mocks.MockToken)
	token.On("WaitTimeout", time.Second).Return(false)

	client := new(mocks.MQTTClient)
	client.On("Publish", "home/ups/status", byte(0), true, "offline").Return(token)

	p := newTestPublisher(client)
	err := p.PublishAvailability(models.Offline)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	token.AssertNotCalled(t, "Error")
}

func TestPublishRegistration(t *testing.T) {
	client := new(mocks.MQTTClient)
	published := map[string][]byte{}
	client.On("Publish", mock.Anything, byte(0), true, mock.Anything).
		Run(func(args mock.Arguments) {
			published[args.String(0)] = args.Get(3).([]byte)
		}).
		Return(mocks.NewCompletedToken(nil))

	p := newTestPublisher(client)
	require.NoError(t, p.PublishRegistration())

	// six sensors plus the availability binary sensor
	assert.Len(t, published, 7)

	var sensor models.SensorDiscovery
	require.NoError(t, json.Unmarshal(published["homeassistant/sensor/home_ups_mains_voltage/config"], &sensor))
	assert.Equal(t, "Mains Voltage", sensor.Name)
	assert.Equal(t, "home/ups/mains_voltage", sensor.StateTopic)
	assert.Equal(t, "V", sensor.UnitOfMeasurement)
	assert.Equal(t, "voltage", sensor.DeviceClass)
	assert.Equal(t, "measurement", sensor.StateClass)
	assert.Equal(t, "home_ups_mains_voltage", sensor.UniqueID)
	assert.Equal(t, "home/ups/status", sensor.AvailabilityTopic)
	assert.Equal(t, []string{"home-ups"}, sensor.Device.Identifiers)
	assert.Equal(t, "Home UPS", sensor.Device.Name)
	assert.Equal(t, "V-Guard", sensor.Device.Manufacturer)
	assert.Equal(t, "SOLSMART 1450", sensor.Device.Model)
	assert.Equal(t, "1.4.0", sensor.Device.SWVersion)

	var status models.BinarySensorDiscovery
	require.NoError(t, json.Unmarshal(published["homeassistant/binary_sensor/home_ups_status/config"], &status))
	assert.Equal(t, "UPS Availability", status.Name)
	assert.Equal(t, "home/ups/status", status.StateTopic)
	assert.Equal(t, "online", status.PayloadOn)
	assert.Equal(t, "offline", status.PayloadOff)
	assert.Equal(t, "connectivity", status.DeviceClass)
	assert.Equal(t, "home_ups_status", status.UniqueID)
}

func TestPublishRegistration_Idempotent(t *testing.T) {
	client := new(mocks.MQTTClient)
	counts := map[string]int{}
	client.On("Publish", mock.Anything, byte(0), true, mock.Anything).
		Run(func(args mock.Arguments) { counts[args.String(0)]++ }).
		Return(mocks.NewCompletedToken(nil))

	p := newTestPublisher(client)
	require.NoError(t, p.PublishRegistration())
	require.NoError(t, p.PublishRegistration())

	assert.Len(t, counts, 7)
	for topic, n := range counts {
		assert.Equal(t, 2, n, topic)
	}
}

func TestPublishRegistration_ReportsFailures(t *testing.T) {
	client := new(mocks.MQTTClient)
	client.On("Publish", "homeassistant/sensor/home_ups_mains_voltage/config", byte(0), true, mock.Anything).
		Return(mocks.NewCompletedToken(errors.New("broker gone")))
	client.On("Publish", mock.Anything, byte(0), true, mock.Anything).
		Return(mocks.NewCompletedToken(nil))

	p := newTestPublisher(client)
	err := p.PublishRegistration()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "broker gone")
	client.AssertNumberOfCalls(t, "Publish", 7)
}

func TestPublishRegistration_UsesDeviceIdentity(t *testing.T) {
	deviceInfo := new(mocks.DeviceInfoInterface)
	deviceInfo.On("GetUniqueIDBase").Return("garage_ups")
	deviceInfo.On("GetDeviceID").Return("garage-ups")
	deviceInfo.On("GetDeviceIdentity").Return(&identity.Identity{
		ID: "garage-ups", Name: "Garage UPS", Manufacturer: "V-Guard", Model: "SOLSMART 1450",
	})

	client := new(mocks.MQTTClient)
	published := map[string][]byte{}
	client.On("Publish", mock.Anything, byte(0), true, mock.Anything).
		Run(func(args mock.Arguments) { published[args.String(0)] = args.Get(3).([]byte) }).
		Return(mocks.NewCompletedToken(nil))

	p := publisher.New(publisher.Config{}, client, sensors.Default(), deviceInfo, zerolog.Nop())
	require.NoError(t, p.PublishRegistration())

	raw, ok := published["homeassistant/sensor/garage_ups_load_percentage/config"]
	require.True(t, ok)

	var sensor models.SensorDiscovery
	require.NoError(t, json.Unmarshal(raw, &sensor))
	assert.Equal(t, "garage_ups_load_percentage", sensor.UniqueID)
	assert.Equal(t, []string{"garage-ups"}, sensor.Device.Identifiers)
	assert.Equal(t, "Garage UPS", sensor.Device.Name)
	assert.Contains(t, published, "homeassistant/binary_sensor/garage_ups_status/config")
}
