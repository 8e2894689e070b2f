package meter

import (
	"context"
	"math/rand"
	"sync"
	"time"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

// Simulated produces readings around a nominal point, for benches without
// an RS485 adapter.
type Simulated struct {
	Nominal domain.Reading
	// Jitter is the relative spread, 0.05 means ±5%.
	Jitter float64

	mu         sync.Mutex
	randSource *rand.Rand
}

func NewSimulated(nominal domain.Reading, jitter float64) *Simulated {
	// Create a dedicated random source to avoid contention
	src := rand.NewSource(time.Now().UnixNano())
	return &Simulated{Nominal: nominal, Jitter: jitter, randSource: rand.New(src)}
}

func (s *Simulated) Read(ctx context.Context) (domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return domain.Reading{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pf := s.spread(s.Nominal.PowerFactor)
	if pf > 1 {
		pf = 1
	}
	return domain.Reading{
		Power:       round(s.spread(s.Nominal.Power), 1),
		PowerFactor: round(pf, 2),
		RPM:         int(s.spread(float64(s.Nominal.RPM))),
	}, nil
}

func (s *Simulated) spread(v float64) float64 {
	if s.Jitter == 0 || s.randSource == nil {
		return v
	}
	return v * (1 + s.Jitter*(2*s.randSource.Float64()-1))
}
