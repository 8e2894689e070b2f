package specs

import "context"

// Repository port for model limits. Lookups ignore case.
type Repository interface {
	Upsert(ctx context.Context, m *ModelSpec) error
	Update(ctx context.Context, m *ModelSpec) (bool, error)
	Delete(ctx context.Context, prefix string) (bool, error)
	Get(ctx context.Context, prefix string) (*ModelSpec, error)
	List(ctx context.Context) ([]*ModelSpec, error)
}
