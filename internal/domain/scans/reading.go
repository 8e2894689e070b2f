package scans

// Reading is one live sample from the RS485 meters.
type Reading struct {
	Power       float64 `json:"power"`
	PowerFactor float64 `json:"power_factor"`
	RPM         int     `json:"rpm"`
}

// SubmitRequest is a scan as posted by a station.
type SubmitRequest struct {
	QRCode      string
	FailureCode string
}
