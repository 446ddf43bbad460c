package ftp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstantBackoff(t *testing.T) {
	b := ConstantBackoff(25 * time.Millisecond)
	assert.Equal(t, 25*time.Millisecond, b(1))
	assert.Equal(t, 25*time.Millisecond, b(10))
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(10*time.Millisecond, 80*time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, b(1))
	assert.Equal(t, 20*time.Millisecond, b(2))
	assert.Equal(t, 40*time.Millisecond, b(3))
	assert.Equal(t, 80*time.Millisecond, b(4))
	assert.Equal(t, 80*time.Millisecond, b(10), "capped at max")
}

func TestSleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Minute), context.Canceled)
}

func TestSleepZeroDuration(t *testing.T) {
	assert.NoError(t, sleep(context.Background(), 0))
}
