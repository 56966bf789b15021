package metrics

import (
	"gonum.org/v1/gonum/mat"
)

// Accuracy returns the fraction of exactly matching labels.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	t, p, err := pair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := range t {
		if t[i] == p[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(t)), nil
}

// ClassificationError returns 1 - Accuracy.
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}
