package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type ProbsRequest struct {
	TF string `query:"tf" json:"tf" default:"4h" validate:"oneof=1h 4h"`
}

type LevelsRequest struct {
	// no parameters today; kept for forward compatibility with multi-instrument
}

type FiltersUpdateRequest struct {
	TF             string          `query:"tf" json:"tf" default:"4h" validate:"oneof=1h 4h"`
	FiltersEnabled map[string]bool `json:"filters_enabled" validate:"required"`
}
