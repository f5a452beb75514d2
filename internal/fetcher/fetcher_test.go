package fetcher

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *float64
	}{
		{"dollar price", "$12.34", floatPtr(12.34)},
		{"thousands separator", "$1,234.56", floatPtr(1234.56)},
		{"euro price", "€8.50", floatPtr(8.5)},
		{"pound price", "£3.20", floatPtr(3.2)},
		{"bare number", "62.5", floatPtr(62.5)},
		{"surrounding whitespace", " $5.00 ", floatPtr(5.0)},
		{"empty string", "", nil},
		{"garbage", "not a price", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePrice(tt.input, testLogger())
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestParseVolume(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *int64
	}{
		{"plain count", "523", int64Ptr(523)},
		{"thousands separator", "1,234", int64Ptr(1234)},
		{"empty string", "", nil},
		{"garbage", "lots", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVolume(tt.input, testLogger())
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestRetryerSucceedsFirstAttempt(t *testing.T) {
	r := NewRetryer(RetryConfig{MaxAttempts: 3, BackoffBase: 2}, testLogger())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryerRecoversAfterFailure(t *testing.T) {
	// BackoffBase 1.001 keeps the between-attempt sleeps around a second
	// without tripping the <=1 default.
	r := NewRetryer(RetryConfig{MaxAttempts: 3, BackoffBase: 1.001}, testLogger())

	calls := 0
	err := r.Do(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryerExhaustsAttempts(t *testing.T) {
	r := NewRetryer(RetryConfig{MaxAttempts: 2, BackoffBase: 1.001}, testLogger())

	calls := 0
	start := time.Now()
	err := r.Do(context.Background(), func() error {
		calls++
		return errors.New("down")
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, 2, calls)
	assert.Contains(t, err.Error(), "max attempts (2) exceeded")
	assert.ErrorContains(t, err, "down")

	// One backoff between the two attempts, none after the last.
	assert.Less(t, elapsed, 3*time.Second)
}

func TestRetryerHonorsCancellation(t *testing.T) {
	r := NewRetryer(RetryConfig{MaxAttempts: 5, BackoffBase: 10}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- r.Do(ctx, func() error {
			calls++
			return errors.New("down")
		})
	}()

	// Cancel while the retryer is in its first backoff sleep.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("retryer did not stop after cancellation")
	}
}

func TestRetryerDefaults(t *testing.T) {
	r := NewRetryer(RetryConfig{}, testLogger())
	assert.Equal(t, 3, r.cfg.MaxAttempts)
	assert.Equal(t, 2.0, r.cfg.BackoffBase)
	assert.Equal(t, "fetcher", r.cfg.Name)
}

func TestFailure(t *testing.T) {
	status := 500
	latency := int64(12)
	o := Failure("HTTP 500", &status, &latency)
	assert.False(t, o.Success)
	assert.Equal(t, "HTTP 500", o.Err)
	assert.Equal(t, 500, *o.StatusCode)
	assert.Equal(t, int64(12), *o.LatencyMS)
}

func floatPtr(v float64) *float64 { return &v }
func int64Ptr(v int64) *int64     { return &v }
