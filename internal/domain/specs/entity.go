package specs

import "strings"

// ModelSpec holds the acceptance limits of one product model, keyed by the
// part of the QR code before the first dot.
type ModelSpec struct {
	Prefix   string  `json:"model_prefix"`
	PowerMin float64 `json:"power_min"`
	PowerMax float64 `json:"power_max"`
	PFMin    float64 `json:"pf_min"`
	RPMMin   int     `json:"rpm_min"`
	RPMMax   int     `json:"rpm_max"`
}

// Accepts reports whether a reading falls inside the limits.
func (m *ModelSpec) Accepts(power, powerFactor float64, rpm int) bool {
	return m.PowerMin <= power && power <= m.PowerMax &&
		m.PFMin <= powerFactor &&
		m.RPMMin <= rpm && rpm <= m.RPMMax
}

// PrefixOf extracts the model prefix of a QR code.
func PrefixOf(qrCode string) string {
	prefix, _, _ := strings.Cut(qrCode, ".")
	return prefix
}
