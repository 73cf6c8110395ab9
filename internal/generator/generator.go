package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/afroash/dht-generator/internal/config"
	"github.com/afroash/dht-generator/internal/ingest"
	"github.com/afroash/dht-generator/internal/models"
	"github.com/afroash/dht-generator/internal/random"
)

// Value ranges for generated readings, rounded to one decimal place.
const (
	MinTemperature = 18.0
	MaxTemperature = 22.0
	MinHumidity    = 72.0
	MaxHumidity    = 85.0
	Decimals       = 1
)

// Result describes a finished (or aborted) run.
type Result struct {
	RunID    string
	Readings int
	Rows     int
	Flushes  int
}

// Generator produces random readings and writes them through one Sender.
type Generator struct {
	cfg    config.GeneratorConfig
	runID  string
	rng    *random.Source
	clock  clockwork.Clock
	logger zerolog.Logger
}

type Option func(*Generator)

// WithClock replaces the clock used for inter-reading sleeps.
func WithClock(clock clockwork.Clock) Option {
	return func(g *Generator) {
		g.clock = clock
	}
}

// WithSource replaces the random source.
func WithSource(src *random.Source) Option {
	return func(g *Generator) {
		g.rng = src
	}
}

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(g *Generator) {
		g.runID = id
	}
}

// New creates a generator for cfg.
func New(cfg config.GeneratorConfig, logger zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		cfg:   cfg,
		runID: uuid.NewString(),
		rng:   random.New(),
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = logger.With().Str("run_id", g.runID).Logger()
	return g
}

// RunID returns the identifier attached to this run's logs and batches.
func (g *Generator) RunID() string {
	return g.runID
}

// Next draws one reading: a random configured sensor and random values.
func (g *Generator) Next() *models.Reading {
	sensorID := g.cfg.SensorIDs[g.rng.Int(0, len(g.cfg.SensorIDs)-1)]
	temp := g.rng.Float(MinTemperature, MaxTemperature, Decimals)
	humidity := g.rng.Float(MinHumidity, MaxHumidity, Decimals)
	return models.NewReading(sensorID, temp, humidity)
}

// SleepDuration draws the pause before the next reading.
func (g *Generator) SleepDuration() time.Duration {
	ms := g.rng.Int(g.cfg.MinSleepMillis, g.cfg.MaxSleepMillis)
	return time.Duration(ms) * time.Millisecond
}

// Run opens one connection with dial, generates the configured number of
// readings and closes the connection exactly once, whatever the outcome.
func (g *Generator) Run(ctx context.Context, dial ingest.Dialer) (result Result, err error) {
	result.RunID = g.runID

	if len(g.cfg.SensorIDs) == 0 {
		return result, fmt.Errorf("%w: no sensor ids", config.ErrInvalid)
	}
	if g.cfg.MinSleepMillis > g.cfg.MaxSleepMillis {
		return result, fmt.Errorf("%w: min sleep exceeds max sleep", config.ErrInvalid)
	}
	if g.cfg.MinSleepMillis < 0 || int64(g.cfg.MaxSleepMillis) > config.SleepMillisLimit {
		return result, fmt.Errorf("%w: sleep outside 0..%dms", config.ErrInvalid, config.SleepMillisLimit)
	}
	if g.cfg.Readings < 0 {
		return result, fmt.Errorf("%w: negative readings target", config.ErrInvalid)
	}

	sender, err := dial(ctx)
	if err != nil {
		return result, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if cerr := sender.Close(context.WithoutCancel(ctx)); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close: %w", cerr))
		}
	}()

	g.logger.Info().Int("readings", g.cfg.Readings).Msgf("Will generate %d readings...", g.cfg.Readings)

	for result.Readings < g.cfg.Readings {
		reading := g.Next()

		for _, row := range []models.Row{reading.TemperatureRow(), reading.HumidityRow()} {
			if err := sender.Row(ctx, row); err != nil {
				return result, fmt.Errorf("reading %d: %w", result.Readings+1, err)
			}
			result.Rows++
		}

		if err := sender.Flush(ctx); err != nil {
			return result, fmt.Errorf("reading %d: %w", result.Readings+1, err)
		}
		result.Flushes++

		g.logger.Info().
			Str("sensor_id", reading.SensorID).
			Float64("temperature", reading.Temperature).
			Float64("humidity", reading.Humidity).
			Msg(reading.String())

		if err := g.sleep(ctx, g.SleepDuration()); err != nil {
			return result, err
		}

		result.Readings++
	}

	g.logger.Info().Int("readings", result.Readings).Msgf("Finished, generated %d readings.", result.Readings)
	return result, nil
}

// sleep waits d on the generator clock, returning early if ctx is done.
func (g *Generator) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-g.clock.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
