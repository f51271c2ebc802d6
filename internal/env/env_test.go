package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStr(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	assert.Equal(t, "value", Str("TEST_STR", "fallback"))
	assert.Equal(t, "fallback", Str("TEST_STR_UNSET", "fallback"))
}

func TestInt(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_INT_BAD", "nope")
	assert.Equal(t, 42, Int("TEST_INT", 7))
	assert.Equal(t, 7, Int("TEST_INT_BAD", 7))
	assert.Equal(t, 7, Int("TEST_INT_UNSET", 7))
}

func TestFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.05")
	t.Setenv("TEST_FLOAT_BAD", "x")
	assert.Equal(t, 0.05, Float("TEST_FLOAT", 0.5))
	assert.Equal(t, 0.5, Float("TEST_FLOAT_BAD", 0.5))
}

func TestDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "250ms")
	t.Setenv("TEST_DUR_BAD", "soon")
	assert.Equal(t, 250*time.Millisecond, Duration("TEST_DUR", time.Second))
	assert.Equal(t, time.Second, Duration("TEST_DUR_BAD", time.Second))
}
