package service

import "context"

// RangePredictor is the pre-trained range regression, consumed as an opaque
// function. FeatureNames declares the ordered feature list the predictor was
// trained with; Predict takes a row in exactly that order.
type RangePredictor interface {
	FeatureNames(ctx context.Context) ([]string, error)
	Predict(ctx context.Context, row []float64) (float64, error)
}
