package touch

import "fmt"

// Observation is one recorded touch together with the location the user was
// actually aiming for. Sequences of observations are the unit of training
// data; their order only matters when they are replayed as a stream.
type Observation struct {
	User   int   `json:"user"`
	Touch  Point `json:"touch"`
	Target Point `json:"target"`
}

// Offset returns the targeting error of the observation, target minus touch.
func (o Observation) Offset() Point {
	return o.Target.Sub(o.Touch)
}

// ValidateObservations checks a training or test set for non-finite
// coordinates. It does not enforce the unit square: touches slightly outside
// [0,1] occur near screen edges and are legal inputs.
func ValidateObservations(obs []Observation) error {
	for i, o := range obs {
		if !o.Touch.Valid() || !o.Target.Valid() {
			return fmt.Errorf("observation %d has non-finite coordinates: %w", i, ErrDimensionMismatch)
		}
	}
	return nil
}
