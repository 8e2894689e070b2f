package scans

import "github.com/bryanwahyu/qa-scanlog/internal/domain/specs"

// Dashboard is the authoritative view of one day: rows newest first plus counters.
type Dashboard struct {
	SelectedDate string            `json:"selected_date"`
	Scans        []*Scan           `json:"scans"`
	Stats        Stats             `json:"stats"`
	Models       []*specs.ModelSpec `json:"models"`
}
