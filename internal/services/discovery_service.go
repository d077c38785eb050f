package services

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
)

// ConnectNotifier runs handlers after every bus (re)connect.
type ConnectNotifier interface {
	AddOnConnectHandler(fn func())
}

// RegistrationPublisher publishes discovery metadata.
type RegistrationPublisher interface {
	PublishRegistration() error
}

// DiscoveryService republishes discovery configs each time the bus connects,
// so the broker's retained configs survive broker restarts.
type DiscoveryService struct {
	publisher RegistrationPublisher
	notifier  ConnectNotifier
	logger    zerolog.Logger

	mu         sync.Mutex
	running    bool
	registered bool
	publishes  int
}

// NewDiscoveryService initializes a new DiscoveryService.
func NewDiscoveryService(publisher RegistrationPublisher, notifier ConnectNotifier, logger zerolog.Logger) *DiscoveryService {
	return &DiscoveryService{
		publisher: publisher,
		notifier:  notifier,
		logger:    logger.With().Str("component", "discovery_service").Logger(),
	}
}

// Start hooks registration into the bus connect event.
func (d *DiscoveryService) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		d.logger.Warn().Msg("DiscoveryService is already running")
		return errors.New("discovery service is already running")
	}
	d.running = true
	register := !d.registered
	d.registered = true
	d.mu.Unlock()

	// handlers cannot be removed from the notifier; a restart reuses the first one
	if register {
		d.notifier.AddOnConnectHandler(d.onConnect)
	}

	d.logger.Info().Msg("DiscoveryService started successfully")
	return nil
}

// Stop makes later connects skip registration.
func (d *DiscoveryService) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		d.logger.Warn().Msg("DiscoveryService is not running")
		return errors.New("discovery service is not running")
	}
	d.running = false

	d.logger.Info().Msg("DiscoveryService stopped successfully")
	return nil
}

// Publishes returns how many times registration was published.
func (d *DiscoveryService) Publishes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.publishes
}

func (d *DiscoveryService) onConnect() {
	d.mu.Lock()
	running := d.running
	d.mu.Unlock()
	if !running {
		return
	}

	d.logger.Info().Msg("Publishing MQTT discovery configs")
	if err := d.publisher.PublishRegistration(); err != nil {
		d.logger.Error().Err(err).Msg("Failed to publish discovery configs")
		return
	}

	d.mu.Lock()
	d.publishes++
	d.mu.Unlock()
}
