// Package types contains the JSON shapes exchanged over HTTP.
package types

// Recommendation is one entry of the POST /recommendations_by_sector response.
type Recommendation struct {
	State       string  `json:"State"`
	CombinedESI float64 `json:"Combined ESI"`
}

// ErrorBody is the recommendation endpoint's error shape.
type ErrorBody struct {
	Error string `json:"error"`
}

// Region is a fully scored state as served by /api/states and /api/top_regions.
type Region struct {
	State         string   `json:"State"`
	NormalizedESI float64  `json:"Normalized ESI Score"`
	Environmental float64  `json:"Environmental Score"`
	Social        float64  `json:"Social Score"`
	Governance    float64  `json:"Governance Score"`
	CombinedESI   float64  `json:"Combined ESI"`
	Initiatives   []string `json:"Sustainable Initiatives"`
	PredictedESI  float64  `json:"Predicted Combined ESI"`
	Rank          float64  `json:"Rank"`
}

// ScoreUpdateRequest is the body of POST /api/states/updates.
type ScoreUpdateRequest struct {
	EventID       string   `json:"event_id"`
	State         string   `json:"state"`
	NormalizedESI *float64 `json:"normalized_esi"`
	Environmental *float64 `json:"environmental"`
	Social        *float64 `json:"social"`
	Governance    *float64 `json:"governance"`
	Initiatives   []string `json:"initiatives,omitempty"`
	TS            string   `json:"ts,omitempty"`
}

// AckResponse acknowledges a score update.
type AckResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	Duplicate bool   `json:"duplicate"`
}

// Summary describes the distribution of one score across states.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P90    float64 `json:"p90"`
}

// ModelStats describes the fitted predictor.
type ModelStats struct {
	TrainSize    int       `json:"train_size"`
	TestSize     int       `json:"test_size"`
	TestRMSE     float64   `json:"test_rmse"`
	Coefficients []float64 `json:"coefficients"`
}

// Stats is the body of GET /stats.
type Stats struct {
	Started       bool       `json:"started"`
	StoreBackend  string     `json:"store_backend"`
	States        int        `json:"states"`
	Sectors       int        `json:"sectors"`
	WorkerCount   int        `json:"worker_count"`
	QueueLength   int        `json:"queue_length"`
	QueueCapacity int        `json:"queue_capacity"`
	DedupeSize    int64      `json:"dedupe_size"`
	Model         ModelStats `json:"model"`
	CombinedESI   Summary    `json:"combined_esi"`
}
