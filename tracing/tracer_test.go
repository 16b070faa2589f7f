package tracing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zalgonoise/bansuri/tracing"
)

func TestTracer(t *testing.T) {
	tracer := tracing.Tracer()
	assert.NotNil(t, tracer)
}
