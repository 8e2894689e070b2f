package scans

import "github.com/bryanwahyu/qa-scanlog/internal/domain/specs"

// Outcome is the verdict for one reading.
type Outcome struct {
	Status      Status
	FailureCode string
	Result      string
}

// Evaluate grades a reading against the model limits. A nil spec means the
// model prefix is unknown. failureCode is what the station sent ("NA" when
// it had none).
func Evaluate(spec *specs.ModelSpec, r Reading, failureCode string) Outcome {
	if spec == nil {
		return Outcome{Status: StatusFail, FailureCode: FailureCodeUnknownModel, Result: ResultModelNotFound}
	}
	if spec.Accepts(r.Power, r.PowerFactor, r.RPM) {
		return Outcome{Status: StatusPass, FailureCode: FailureCodeNone, Result: ResultFirstPass}
	}
	if failureCode == FailureCodeNone {
		failureCode = ""
	}
	return Outcome{Status: StatusFail, FailureCode: failureCode, Result: failureCode}
}
