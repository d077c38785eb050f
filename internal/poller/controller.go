package poller

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/benmeehan/ups-bridge/internal/codec"
	"github.com/benmeehan/ups-bridge/internal/sensors"
	"github.com/benmeehan/ups-bridge/pkg/ble"
)

// notificationBuffer bounds the hand-off between the transport goroutine and
// the cycle. One cycle produces at most a few responses per registered prefix.
const notificationBuffer = 128

// Config holds the device address and pacing of one cycle.
type Config struct {
	Address              string
	WriteCharacteristic  string
	NotifyCharacteristic string
	RequestSpacing       time.Duration // pause after every request write
	SettleTime           time.Duration // wait after the last request for stragglers
}

// Controller runs poll cycles against a device. Cycles must not overlap.
type Controller struct {
	cfg        Config
	transport  ble.Transport
	registry   *sensors.Registry
	codec      *codec.Codec
	aggregator *Aggregator
	logger     zerolog.Logger

	state State
}

// NewController validates cfg and returns a controller.
func NewController(cfg Config, transport ble.Transport, registry *sensors.Registry, logger zerolog.Logger) (*Controller, error) {
	if cfg.Address == "" {
		return nil, errors.New("poller: device address required")
	}
	if transport == nil {
		return nil, errors.New("poller: transport required")
	}
	if registry == nil {
		return nil, errors.New("poller: sensor registry required")
	}
	if cfg.RequestSpacing < 0 || cfg.SettleTime < 0 {
		return nil, errors.New("poller: request spacing and settle time must be >= 0")
	}
	if cfg.WriteCharacteristic == "" {
		cfg.WriteCharacteristic = ble.WriteCharacteristicUUID
	}
	if cfg.NotifyCharacteristic == "" {
		cfg.NotifyCharacteristic = ble.NotifyCharacteristicUUID
	}

	return &Controller{
		cfg:        cfg,
		transport:  transport,
		registry:   registry,
		codec:      codec.New(registry),
		aggregator: NewAggregator(registry),
		logger:     logger.With().Str("component", "poller").Str("address", cfg.Address).Logger(),
		state:      StateIdle,
	}, nil
}

// State returns the state the last cycle left the controller in.
func (c *Controller) State() State {
	return c.state
}

// Missing lists registered sensors absent from s.
func (c *Controller) Missing(s Snapshot) []string {
	return c.aggregator.Missing(s)
}

func (c *Controller) enter(s State) {
	c.logger.Debug().Str("from", c.state.String()).Str("to", s.String()).Msg("Poll state transition")
	c.state = s
}

// cycle carries the per-cycle mutable state.
type cycle struct {
	notifications chan []byte
	unknown       []codec.Response
}

// RunCycle performs exactly one connect, request, settle, disconnect cycle.
// The session is released on every exit path.
func (c *Controller) RunCycle(ctx context.Context) (out Outcome) {
	cy := &cycle{notifications: make(chan []byte, notificationBuffer)}
	c.aggregator.StartCycle()

	fail := func(err error, msg string) Outcome {
		te := &TransportError{State: c.state, Err: errors.Wrap(err, msg)}
		c.state = StateFailed
		return Outcome{Unknown: cy.unknown, Err: te}
	}

	c.enter(StateConnecting)
	session, err := c.transport.Connect(ctx, c.cfg.Address)
	if err != nil {
		out = fail(err, "connect")
		c.enter(StateIdle)
		return out
	}

	subscribed := false
	defer func() {
		if subscribed {
			if out.Success() {
				c.enter(StateUnsubscribing)
			}
			if err := session.Unsubscribe(c.cfg.NotifyCharacteristic); err != nil {
				if out.Success() {
					out = fail(err, "unsubscribe")
				} else {
					c.logger.Warn().Err(err).Msg("Unsubscribe after failed cycle")
				}
			}
		}

		c.enter(StateDisconnecting)
		if err := session.Disconnect(); err != nil {
			c.logger.Warn().Err(err).Msg("Disconnect failed")
		}
		c.enter(StateIdle)
	}()

	if !session.IsConnected() {
		return fail(ble.ErrNotConnected, "connect")
	}

	c.enter(StateSubscribing)
	err = session.Subscribe(c.cfg.NotifyCharacteristic, func(data []byte) {
		frame := append([]byte(nil), data...)
		select {
		case cy.notifications <- frame:
		default:
			// buffer full; the frame is lost for this cycle
		}
	})
	if err != nil {
		return fail(err, "subscribe")
	}
	subscribed = true

	c.enter(StateRequesting)
	for _, prefix := range c.registry.Prefixes() {
		def, _ := c.registry.Lookup(prefix)
		c.logger.Debug().Str("sensor", def.Name).Str("prefix", prefix.String()).Msg("Requesting")

		if err := session.Write(c.cfg.WriteCharacteristic, codec.EncodeRequest(prefix)); err != nil {
			return fail(err, "write request "+prefix.String())
		}
		if err := c.wait(ctx, cy, c.cfg.RequestSpacing); err != nil {
			return fail(err, "request spacing")
		}
	}

	c.enter(StateSettling)
	if err := c.wait(ctx, cy, c.cfg.SettleTime); err != nil {
		return fail(err, "settle")
	}
	c.drain(cy)

	snapshot := c.aggregator.FinishCycle()
	c.logger.Debug().Int("measurements", snapshot.Len()).Int("unknown", len(cy.unknown)).Msg("Poll cycle collected")

	return Outcome{Snapshot: snapshot, Unknown: cy.unknown}
}

// wait handles notifications until d elapses or ctx is done.
func (c *Controller) wait(ctx context.Context, cy *cycle, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	for {
		select {
		case frame := <-cy.notifications:
			c.handle(cy, frame)
		case <-timer.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// drain handles whatever is already buffered without blocking.
func (c *Controller) drain(cy *cycle) {
	for {
		select {
		case frame := <-cy.notifications:
			c.handle(cy, frame)
		default:
			return
		}
	}
}

func (c *Controller) handle(cy *cycle, frame []byte) {
	res := c.codec.Decode(frame)
	if !res.Known {
		c.logger.Debug().Str("frame", res.Hex()).Msg("Unknown response")
		cy.unknown = append(cy.unknown, res)
		return
	}

	c.logger.Debug().Str("sensor", res.Name).Uint16("raw", res.Raw).Float64("value", res.Value).Msg("Response decoded")
	c.aggregator.Record(res)
}
