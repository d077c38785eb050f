package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/benmeehan/ups-bridge/internal/models"
	"github.com/benmeehan/ups-bridge/internal/poller"
	"github.com/benmeehan/ups-bridge/internal/publisher"
	"github.com/benmeehan/ups-bridge/internal/sensors"
	"github.com/benmeehan/ups-bridge/internal/service_registry"
	"github.com/benmeehan/ups-bridge/internal/utils"
	"github.com/benmeehan/ups-bridge/pkg/ble"
	"github.com/benmeehan/ups-bridge/pkg/file"
	"github.com/benmeehan/ups-bridge/pkg/identity"
	"github.com/benmeehan/ups-bridge/pkg/mqtt"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	probe := flag.Bool("probe", false, "run one cycle over every known opcode, log the results and exit")
	flag.Parse()

	// Bootstrap logger until the configured one is built
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := utils.ApplyEnvOverrides(config); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply environment overrides")
	}
	utils.ApplyDefaults(config)
	if err := utils.ValidateConfig(config); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	configured, err := utils.NewLogger(os.Stdout, config.Logging.Level, config.Logging.Format)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build logger")
	}
	log = configured

	swVersion, err := semver.NewVersion(version)
	if err != nil {
		log.Fatal().Err(err).Str("version", version).Msg("Invalid build version")
	}
	log.Info().Str("version", swVersion.String()).Str("address", config.Device.Address).Msg("Starting UPS bridge")

	transport, err := ble.NewGoBLETransport(log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open BLE device")
	}

	controllerConfig := poller.Config{
		Address:              config.Device.Address,
		WriteCharacteristic:  config.Device.WriteCharacteristic,
		NotifyCharacteristic: config.Device.NotifyCharacteristic,
		RequestSpacing:       config.Poll.RequestSpacing,
		SettleTime:           config.Poll.SettleTime,
	}

	if *probe {
		controller, err := poller.NewController(controllerConfig, transport, sensors.Probe(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create poll controller")
		}

		ctx, cancel := context.WithTimeout(context.Background(), config.Poll.CycleTimeout)
		defer cancel()
		if err := runProbe(ctx, controller, log); err != nil {
			log.Error().Err(err).Msg("Probe failed")
			cancel()
			os.Exit(1)
		}
		return
	}

	registry := sensors.Default()
	controller, err := poller.NewController(controllerConfig, transport, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create poll controller")
	}

	// Initialize DeviceInfo
	deviceInfo := identity.NewDeviceInfo(config.Device.IdentityFile, fileClient)
	if err := deviceInfo.LoadDeviceInfo(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load device information")
	}
	deviceInfo.GetDeviceIdentity().SWVersion = swVersion.String()

	mqttClient := mqtt.NewMqttService(fileClient, log)
	pub := publisher.New(publisher.Config{
		TopicPrefix:     config.MQTT.TopicPrefix,
		DiscoveryPrefix: config.MQTT.DiscoveryPrefix,
		QOS:             byte(config.MQTT.QOS),
		PublishTimeout:  config.MQTT.PublishTimeout,
	}, mqttClient, registry, deviceInfo, log)

	// Generate a unique MQTT Client ID by appending a UUID
	clientID := fmt.Sprintf("%s-%s", config.MQTT.ClientID, uuid.New().String())
	log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

	err = mqttClient.Initialize(mqtt.Options{
		Host:              config.MQTT.Host,
		Port:              config.MQTT.Port,
		ClientID:          clientID,
		Username:          config.MQTT.Username,
		Password:          config.MQTT.Password,
		CACertificate:     config.MQTT.CACertificate,
		KeepAlive:         config.MQTT.KeepAlive,
		ReconnectInterval: config.MQTT.ReconnectInterval,
		ConnectTimeout:    config.MQTT.ConnectTimeout,
		ConnectAttempts:   config.MQTT.ConnectAttempts,
		WillTopic:         pub.AvailabilityTopic(),
		WillPayload:       models.Offline.Payload(),
		WillQOS:           byte(config.MQTT.QOS),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	serviceRegistry := service_registry.NewServiceRegistry(log)
	err = serviceRegistry.RegisterServices(config, service_registry.Dependencies{
		Runner:    controller,
		Publisher: pub,
		Notifier:  mqttClient,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register services")
	}

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Failed to stop services cleanly")
	}
	mqttClient.Disconnect(250)
}
