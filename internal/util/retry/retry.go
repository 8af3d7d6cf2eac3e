package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config holds retry configuration.
type Config struct {
	Attempts   int
	Delay      time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Notify     func(attempt int, err error, wait time.Duration)
}

// Option is a functional option for retry configuration.
type Option func(*Config)

// Do runs operation until it succeeds, returns a Fatal error, the attempts
// are used up, or ctx is done. A cancelled context is never retried.
func Do(ctx context.Context, operation func() error, opts ...Option) error {
	cfg := &Config{
		Attempts:   3,
		Delay:      2 * time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}

	delay := cfg.Delay
	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsFatal(err) {
			return err
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w after %d attempt(s): %w", ctx.Err(), attempt, err)
		}
		if attempt == cfg.Attempts {
			break
		}

		if cfg.Notify != nil {
			cfg.Notify(attempt, err, delay)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w after %d attempt(s): %w", ctx.Err(), attempt, err)
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	if cfg.Attempts == 1 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", cfg.Attempts, lastErr)
}

// WithAttempts sets the total number of attempts, including the first.
func WithAttempts(n int) Option {
	return func(c *Config) {
		c.Attempts = n
	}
}

// WithDelay sets the delay before the second attempt.
func WithDelay(d time.Duration) Option {
	return func(c *Config) {
		c.Delay = d
	}
}

// WithMaxDelay caps the delay between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		c.MaxDelay = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(c *Config) {
		c.Multiplier = m
	}
}

// WithNotify calls fn before each wait.
func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(c *Config) {
		c.Notify = fn
	}
}

// FatalError wraps an error to mark it as fatal (non-retryable).
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return e.Err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal marks an error as fatal (non-retryable).
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal checks if an error is fatal (non-retryable).
func IsFatal(err error) bool {
	var fatalErr *FatalError
	return errors.As(err, &fatalErr)
}
