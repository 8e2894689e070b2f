package meter

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/qa-scanlog/internal/config"
	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

func floatBytes(v float32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, math.Float32bits(v))
	return b
}

func TestDecodeFloat(t *testing.T) {
	v, err := decodeFloat(floatBytes(61.25))
	require.NoError(t, err)
	assert.Equal(t, 61.25, v)

	_, err = decodeFloat(floatBytes(-1))
	assert.Error(t, err)
	_, err = decodeFloat(floatBytes(2e6))
	assert.Error(t, err)
	_, err = decodeFloat([]byte{1, 2})
	assert.Error(t, err)
}

func TestDecodeRPM(t *testing.T) {
	rpm, err := decodeRPM([]byte{0x01, 0x5E})
	require.NoError(t, err)
	assert.Equal(t, 350, rpm)

	_, err = decodeRPM([]byte{1})
	assert.Error(t, err)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 61.3, round(61.26, 1))
	assert.Equal(t, 0.95, round(0.9549, 2))
}

func TestSimulated(t *testing.T) {
	nominal := domain.Reading{Power: 60, PowerFactor: 0.95, RPM: 350}

	fixed := &Simulated{Nominal: nominal}
	r, err := fixed.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, nominal, r)

	sim := NewSimulated(nominal, 0.05)
	for i := 0; i < 50; i++ {
		r, err := sim.Read(context.Background())
		require.NoError(t, err)
		assert.InDelta(t, 60, r.Power, 3.1)
		assert.LessOrEqual(t, r.PowerFactor, 1.0)
		assert.InDelta(t, 350, r.RPM, 18)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.Read(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewPicksMode(t *testing.T) {
	_, ok := New(config.Meter{Mode: config.MeterSimulated}, zerolog.Nop()).(*Simulated)
	assert.True(t, ok)
	_, ok = New(config.Meter{Mode: config.MeterModbus}, zerolog.Nop()).(*Modbus)
	assert.True(t, ok)
}
