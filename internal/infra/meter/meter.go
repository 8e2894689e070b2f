package meter

import (
	"github.com/rs/zerolog"

	"github.com/bryanwahyu/qa-scanlog/internal/config"
	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

// nominal reading of the simulated bench
var benchReading = domain.Reading{Power: 60, PowerFactor: 0.95, RPM: 350}

// New picks the meter for the configured mode.
func New(cfg config.Meter, log zerolog.Logger) domain.Meter {
	if cfg.Mode == config.MeterSimulated {
		log.Warn().Msg("meter running in simulated mode")
		return NewSimulated(benchReading, 0.05)
	}
	return NewModbus(cfg, log)
}
