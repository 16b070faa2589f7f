package sampler_test

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zalgonoise/bansuri/sampler"
)

func TestSample_NoPID(t *testing.T) {
	s := sampler.New(nil)

	sample := s.Sample(context.Background(), 0)
	assert.Equal(t, sampler.Sample{}, sample)
}

func TestSample_LiveProcess(t *testing.T) {
	cmd := exec.Command("sleep", "2")
	require.NoError(t, cmd.Start())

	defer cmd.Process.Kill()

	s := sampler.New(nil)

	// first sample primes the CPU% cache entry
	_ = s.Sample(context.Background(), cmd.Process.Pid)

	time.Sleep(50 * time.Millisecond)

	result := s.Sample(context.Background(), cmd.Process.Pid)
	assert.GreaterOrEqual(t, result.CPUPercent, 0.0)
}

func TestNoOp(t *testing.T) {
	assert.Equal(t, sampler.Sample{}, sampler.NoOp().Sample(context.Background(), 123))
}
