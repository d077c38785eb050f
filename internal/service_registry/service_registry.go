package service_registry

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/benmeehan/ups-bridge/internal/publisher"
	"github.com/benmeehan/ups-bridge/internal/services"
	"github.com/benmeehan/ups-bridge/internal/utils"
)

// Service is the lifecycle every registered service implements.
type Service interface {
	Start() error
	Stop() error
}

// Dependencies are the collaborators shared by the bridge services.
type Dependencies struct {
	Runner    services.CycleRunner
	Publisher *publisher.Publisher
	Notifier  services.ConnectNotifier
}

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]Service // Stores registered services
	serviceKeys []string           // Maintains order of service registration
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new, empty service registry.
func NewServiceRegistry(logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]Service),
		Logger:   logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// Names returns the registered service names in start order.
func (sr *ServiceRegistry) Names() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	return errors.Join(stopErrors...)
}

// RegisterServices builds the bridge services from configuration. Discovery
// is registered first so it hooks the bus before the first poll publishes.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config, deps Dependencies) error {
	servicesInOrder := []struct {
		name        string
		constructor func() (Service, error)
	}{
		{
			name: "discovery",
			constructor: func() (Service, error) {
				if deps.Publisher == nil || deps.Notifier == nil {
					return nil, errors.New("discovery service needs a publisher and a connect notifier")
				}
				return services.NewDiscoveryService(deps.Publisher, deps.Notifier, sr.Logger), nil
			},
		},
		{
			name: "poller",
			constructor: func() (Service, error) {
				if deps.Runner == nil || deps.Publisher == nil {
					return nil, errors.New("poll service needs a cycle runner and a publisher")
				}
				return services.NewPollService(
					deps.Runner,
					deps.Publisher,
					config.Poll.Interval,
					config.Poll.RetryBackoff,
					config.Poll.MaxRetryBackoff,
					config.Poll.CycleTimeout,
					sr.Logger,
				), nil
			},
		},
	}

	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		serviceInstance, err := svc.constructor()
		if err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
			return err
		}
		sr.RegisterService(svc.name, serviceInstance)
		registeredServices = append(registeredServices, svc.name)
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
