package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMath_MinMaxClamp(t *testing.T) {
	assert.Equal(t, 2, Min(2, 5))
	assert.Equal(t, 5, Max(2, 5))
	assert.Equal(t, 3.5, Abs(-3.5))
	assert.Equal(t, 255.0, Clamp(300.0, 0, 255))
	assert.Equal(t, 0.0, Clamp(-1.0, 0, 255))
	assert.Equal(t, 12, Clamp(12, 0, 255))
}

func TestFormat_Time(t *testing.T) {
	assert.Equal(t, "1.50s", FormatTime(1500*time.Millisecond))
	assert.Equal(t, "2m 3.00s", FormatTime(2*time.Minute+3*time.Second))
	assert.Equal(t, "1h 1m 1.00s", FormatTime(time.Hour+time.Minute+time.Second))
}

func TestFormat_DecorateText(t *testing.T) {
	assert.Equal(t, ErrorColor+"failed"+DefaultColor, DecorateText("failed", ErrorMessage))
	assert.Equal(t, WarningColor+"rejected"+DefaultColor, DecorateText("rejected", WarningMessage))
	assert.Equal(t, "plain", DecorateText("plain", MessageType(99)))
}

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var called bool
	SetLogger(func(string, ...any) { called = true })
	Logf("test message")
	assert.True(t, called)

	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called)
}
