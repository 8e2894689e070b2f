package specs

import (
	"context"
	"fmt"
	"strings"

	scansdomain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/specs"
)

// Actions accepted by Apply.
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Service manages model limits.
type Service struct {
	Repo domain.Repository
}

func NewService(repo domain.Repository) *Service {
	return &Service{Repo: repo}
}

// Apply runs one add/update/delete action and returns the refreshed list.
// An empty action only lists.
func (s *Service) Apply(ctx context.Context, action string, m *domain.ModelSpec) ([]*domain.ModelSpec, error) {
	if action != "" {
		prefix := strings.TrimSpace(m.Prefix)
		if prefix == "" {
			return nil, scansdomain.Invalid("Model prefix is required")
		}
		m.Prefix = prefix
	}

	switch action {
	case "":
	case ActionAdd:
		if err := s.Repo.Upsert(ctx, m); err != nil {
			return nil, fmt.Errorf("saving model %s: %w", m.Prefix, err)
		}
	case ActionUpdate:
		if _, err := s.Repo.Update(ctx, m); err != nil {
			return nil, fmt.Errorf("updating model %s: %w", m.Prefix, err)
		}
	case ActionDelete:
		if _, err := s.Repo.Delete(ctx, m.Prefix); err != nil {
			return nil, fmt.Errorf("deleting model %s: %w", m.Prefix, err)
		}
	default:
		return nil, scansdomain.Invalid("Unknown action: " + action)
	}
	return s.List(ctx)
}

// List returns every model ordered by prefix.
func (s *Service) List(ctx context.Context) ([]*domain.ModelSpec, error) {
	list, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.ModelSpec{}
	}
	return list, nil
}
