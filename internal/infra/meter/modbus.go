// Package meter reads power, power factor and rpm from the RS485 bus.
package meter

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/goburrow/modbus"
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/qa-scanlog/internal/config"
	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

// Modbus reads an energy meter (odd parity) and a tachometer (no parity)
// that share one serial line.
type Modbus struct {
	cfg config.Meter
	log zerolog.Logger
	mu  sync.Mutex
}

func NewModbus(cfg config.Meter, log zerolog.Logger) *Modbus {
	return &Modbus{cfg: cfg, log: log}
}

// Read implements scans.Meter. The line is opened per read since the two
// devices need different parity.
func (m *Modbus) Read(ctx context.Context) (domain.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return domain.Reading{}, err
	}

	power, pf, err := m.readEnergy()
	if err != nil {
		return domain.Reading{}, err
	}

	// the tachometer misses the first frame right after a parity switch
	select {
	case <-ctx.Done():
		return domain.Reading{}, ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}

	rpm, err := m.readRPM()
	if err != nil {
		return domain.Reading{}, err
	}

	r := domain.Reading{
		Power:       round(power, 1),
		PowerFactor: round(pf, 2),
		RPM:         rpm,
	}
	m.log.Debug().Float64("power", r.Power).Float64("power_factor", r.PowerFactor).Int("rpm", r.RPM).Msg("meter read")
	return r, nil
}

func (m *Modbus) handler(slave byte, parity string) *modbus.RTUClientHandler {
	h := modbus.NewRTUClientHandler(m.cfg.Port)
	h.BaudRate = m.cfg.BaudRate
	h.DataBits = 8
	h.Parity = parity
	h.StopBits = 1
	h.SlaveId = slave
	h.Timeout = m.cfg.GetTimeout()
	return h
}

func (m *Modbus) readEnergy() (float64, float64, error) {
	h := m.handler(m.cfg.EnergySlaveID, "O")
	if err := h.Connect(); err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", m.cfg.Port, err)
	}
	defer h.Close()
	client := modbus.NewClient(h)

	power, err := readFloat(client, m.cfg.PowerRegister)
	if err != nil {
		return 0, 0, fmt.Errorf("active power: %w", err)
	}
	pf, err := readFloat(client, m.cfg.PFRegister)
	if err != nil {
		return 0, 0, fmt.Errorf("power factor: %w", err)
	}
	return power, pf, nil
}

func (m *Modbus) readRPM() (int, error) {
	h := m.handler(m.cfg.RPMSlaveID, "N")
	if err := h.Connect(); err != nil {
		return 0, fmt.Errorf("open %s: %w", m.cfg.Port, err)
	}
	defer h.Close()

	b, err := modbus.NewClient(h).ReadInputRegisters(m.cfg.RPMRegister, 1)
	if err != nil {
		return 0, fmt.Errorf("rpm: %w", err)
	}
	return decodeRPM(b)
}

// readFloat reads a float32 spread over two holding registers. Register
// numbers on the meter label are one-based.
func readFloat(client modbus.Client, register uint16) (float64, error) {
	b, err := client.ReadHoldingRegisters(register-1, 2)
	if err != nil {
		return 0, err
	}
	return decodeFloat(b)
}

func decodeFloat(b []byte) (float64, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("expected 4 bytes, got %d", len(b))
	}
	v := float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
	if math.IsNaN(v) || v < 0 || v >= 1e6 {
		return 0, fmt.Errorf("value out of range: %v", v)
	}
	return v, nil
}

func decodeRPM(b []byte) (int, error) {
	if len(b) != 2 {
		return 0, fmt.Errorf("expected 2 bytes, got %d", len(b))
	}
	return int(binary.BigEndian.Uint16(b)), nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
