package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/rs/zerolog"

	"github.com/benmeehan/ups-bridge/internal/models"
	"github.com/benmeehan/ups-bridge/internal/poller"
)

// CycleRunner runs one poll cycle against the device.
type CycleRunner interface {
	RunCycle(ctx context.Context) poller.Outcome
	Missing(s poller.Snapshot) []string
}

// StatePublisher delivers snapshots and availability to the bus.
type StatePublisher interface {
	PublishSnapshot(s poller.Snapshot) error
	PublishAvailability(a models.Availability) error
}

// PollService repeats poll cycles on a fixed interval for the lifetime of the
// process and keeps the availability signal in step with cycle outcomes.
type PollService struct {
	runner       CycleRunner
	publisher    StatePublisher
	interval     time.Duration
	retryBackoff time.Duration
	cycleTimeout time.Duration
	backOff      backoff.BackOff
	logger       zerolog.Logger

	mu           sync.Mutex
	availability models.Availability
	cycles       int
	failures     int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPollService initializes a new PollService. A maxRetryBackoff above
// retryBackoff switches failure backoff from constant to exponential.
func NewPollService(runner CycleRunner, publisher StatePublisher, interval, retryBackoff, maxRetryBackoff,
	cycleTimeout time.Duration, logger zerolog.Logger) *PollService {

	return &PollService{
		runner:       runner,
		publisher:    publisher,
		interval:     interval,
		retryBackoff: retryBackoff,
		cycleTimeout: cycleTimeout,
		backOff:      newRetryBackOff(retryBackoff, maxRetryBackoff),
		logger:       logger.With().Str("component", "poll_service").Logger(),
		availability: models.Offline,
	}
}

func newRetryBackOff(base, max time.Duration) backoff.BackOff {
	if max <= base {
		return backoff.NewConstantBackOff(base)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

// Start launches the poll loop in a separate goroutine.
func (p *PollService) Start() error {
	if p.ctx != nil {
		p.logger.Warn().Msg("PollService is already running")
		return errors.New("poll service is already running")
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.runPollLoop()
	}()

	p.logger.Info().Dur("interval", p.interval).Msg("PollService started successfully")
	return nil
}

// Stop ends the loop, waits for the running cycle and publishes offline.
func (p *PollService) Stop() error {
	if p.ctx == nil {
		p.logger.Warn().Msg("PollService is not running")
		return errors.New("poll service is not running")
	}

	p.cancel()
	p.wg.Wait()

	p.ctx = nil
	p.cancel = nil

	p.setAvailability(models.Offline)

	p.logger.Info().Msg("PollService stopped successfully")
	return nil
}

// Availability returns the last availability the service published.
func (p *PollService) Availability() models.Availability {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.availability
}

// Stats returns the number of cycles run and how many of them failed.
func (p *PollService) Stats() (cycles, failures int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycles, p.failures
}

// runPollLoop starts a cycle every interval. After a failure the retry
// backoff runs first and the interval is counted from its end.
func (p *PollService) runPollLoop() {
	for {
		started := time.Now()

		retryIn := p.RunOnce(p.ctx)
		if retryIn > 0 {
			p.logger.Info().Dur("retry_in", retryIn).Msg("Waiting before retrying")
			if !p.sleep(retryIn) {
				break
			}
			started = time.Now()
		}

		if !p.sleep(p.interval - time.Since(started)) {
			break
		}
	}

	p.logger.Info().Msg("PollService stopping gracefully")
}

// RunOnce runs a single cycle and publishes its outcome. It returns the retry
// backoff to apply after a failure, or zero after a success.
func (p *PollService) RunOnce(ctx context.Context) time.Duration {
	p.logger.Info().Msg("Polling UPS")

	cycleCtx := ctx
	if p.cycleTimeout > 0 {
		var cancel context.CancelFunc
		cycleCtx, cancel = context.WithTimeout(ctx, p.cycleTimeout)
		defer cancel()
	}

	outcome := p.runner.RunCycle(cycleCtx)

	// shutdown interrupted the cycle; Stop publishes offline
	if ctx.Err() != nil {
		return 0
	}

	p.mu.Lock()
	p.cycles++
	if !outcome.Success() {
		p.failures++
	}
	p.mu.Unlock()

	if !outcome.Success() {
		p.logger.Warn().Err(outcome.Err).Str("state", outcome.Err.State.String()).Msg("Error during polling")
		p.setAvailability(models.Offline)

		delay := p.backOff.NextBackOff()
		if delay == backoff.Stop {
			delay = p.retryBackoff
		}
		return delay
	}

	p.backOff.Reset()
	p.setAvailability(models.Online)

	if missing := p.runner.Missing(outcome.Snapshot); len(missing) > 0 {
		p.logger.Warn().Strs("missing", missing).Msg("Sensors did not answer this cycle")
	}
	for _, res := range outcome.Unknown {
		p.logger.Debug().Str("frame", res.Hex()).Msg("Unknown data")
	}

	if err := p.publisher.PublishSnapshot(outcome.Snapshot); err != nil {
		p.logger.Error().Err(err).Msg("Failed to publish snapshot")
	} else {
		p.logger.Info().Int("measurements", outcome.Snapshot.Len()).Msg("Snapshot published")
	}

	return 0
}

// setAvailability publishes a on every call; the retained write is idempotent.
func (p *PollService) setAvailability(a models.Availability) {
	p.mu.Lock()
	p.availability = a
	p.mu.Unlock()

	if err := p.publisher.PublishAvailability(a); err != nil {
		p.logger.Error().Err(err).Str("availability", a.Payload()).Msg("Failed to publish availability")
	}
}

// sleep waits for d or until the service is stopped. It returns false when stopped.
func (p *PollService) sleep(d time.Duration) bool {
	if d <= 0 {
		return p.ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-p.ctx.Done():
		return false
	}
}
