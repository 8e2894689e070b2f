package settings

import (
	"context"
	"fmt"

	"github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/settings"
)

type Service struct {
	repo domain.Repository
}

func NewService(repo domain.Repository) *Service {
	return &Service{repo: repo}
}

// Defaults returns the station defaults.
func (s *Service) Defaults(ctx context.Context) (domain.Defaults, error) {
	v, ok, err := s.repo.Get(ctx, domain.KeyDefaultVoiceRecognition)
	if err != nil {
		return domain.Defaults{}, err
	}
	if !ok {
		v = scans.VoiceNA
	}
	return domain.Defaults{VoiceRecognition: v}, nil
}

// SetVoiceRecognition changes the tag stamped on future scans only.
func (s *Service) SetVoiceRecognition(ctx context.Context, option string) error {
	if option != scans.VoiceOK && option != scans.VoiceNA {
		return scans.Invalid("Invalid option")
	}
	if err := s.repo.Set(ctx, domain.KeyDefaultVoiceRecognition, option); err != nil {
		return fmt.Errorf("saving voice recognition: %w", err)
	}
	return nil
}
