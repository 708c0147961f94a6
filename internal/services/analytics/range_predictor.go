package analytics

import (
	"context"
	"fmt"
	"sync"

	domsvc "LevelCast/internal/domain/service"
	"LevelCast/pkg/config"
)

// HTTPRangePredictor fronts one pre-trained range regression served by the
// model sidecar, one instance per timeframe. The trained feature order is
// fetched once and cached for the process lifetime; the model does not change
// while serving.
type HTTPRangePredictor struct {
	base *HTTPServiceBase
	tf   string

	mu    sync.Mutex
	names []string
}

// NewHTTPRangePredictor builds a predictor client for the given timeframe
// ("1h" or "4h").
func NewHTTPRangePredictor(cfg *config.Config, tf string) *HTTPRangePredictor {
	return &HTTPRangePredictor{base: NewHTTPServiceBase(cfg), tf: tf}
}

type featureNamesResponse struct {
	FeatureNames []string `json:"feature_names"`
}

type predictRequest struct {
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Prediction float64 `json:"prediction"`
}

// FeatureNames returns the ordered feature list the model was trained with.
func (p *HTTPRangePredictor) FeatureNames(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.names != nil {
		return p.names, nil
	}

	var resp featureNamesResponse
	err := p.base.PostJSONWithRetry(ctx, "/range/"+p.tf+"/features", struct{}{}, &resp, 3)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feature names: %w", p.tf, err)
	}
	if len(resp.FeatureNames) == 0 {
		return nil, fmt.Errorf("%s model reported no features", p.tf)
	}
	p.names = resp.FeatureNames
	return p.names, nil
}

// Predict scores one feature row. The row must follow FeatureNames order.
func (p *HTTPRangePredictor) Predict(ctx context.Context, row []float64) (float64, error) {
	var resp predictResponse
	err := p.base.PostJSONWithRetry(ctx, "/range/"+p.tf+"/predict", predictRequest{Features: row}, &resp, 3)
	if err != nil {
		return 0, fmt.Errorf("predict %s range: %w", p.tf, err)
	}
	return resp.Prediction, nil
}

var _ domsvc.RangePredictor = (*HTTPRangePredictor)(nil)
