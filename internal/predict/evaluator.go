package predict

import (
	"fmt"
	"math"

	"touchident/internal/touch"
)

// ImprovementPercent measures the practical benefit of a model on held-out
// observations: the percentage reduction in root-mean-square targeting error
// when touches are corrected by the predicted offset,
// 100 * (rmseRaw - rmseCorrected) / rmseRaw.
//
// A negative result means the model made accuracy worse; it is reported
// as-is. An empty test set has no defined RMSE and returns
// touch.ErrEmptyInput.
func ImprovementPercent(test []touch.Observation, m Model) (float64, error) {
	if len(test) == 0 {
		return 0, fmt.Errorf("accuracy evaluation: %w", touch.ErrEmptyInput)
	}

	points := make([]touch.Point, len(test))
	for i, o := range test {
		points[i] = o.Touch
	}
	preds, err := m.Predict(points)
	if err != nil {
		return 0, fmt.Errorf("accuracy evaluation: %w", err)
	}
	if len(preds) != len(test) {
		return 0, fmt.Errorf("accuracy evaluation: %d predictions for %d observations: %w",
			len(preds), len(test), touch.ErrDimensionMismatch)
	}

	var rawSq, corrSq float64
	for i, o := range test {
		rawSq += sq(o.Touch.Dist(o.Target))
		corrected := o.Touch.Add(preds[i].Offset)
		corrSq += sq(corrected.Dist(o.Target))
	}

	n := float64(len(test))
	rmseRaw := math.Sqrt(rawSq / n)
	rmseCorr := math.Sqrt(corrSq / n)
	if rmseRaw == 0 {
		// Perfect raw accuracy leaves nothing to improve.
		return 0, nil
	}
	return 100 * (rmseRaw - rmseCorr) / rmseRaw, nil
}

func sq(v float64) float64 { return v * v }
