package domain

// Provider-side prediction states as reported by the status endpoint.
const (
	PredictionStarting   = "starting"
	PredictionProcessing = "processing"
	PredictionSucceeded  = "succeeded"
	PredictionFailed     = "failed"
)

// PredictionStatus is the normalized view of one provider status response.
// OutputURL is set when the provider exposed a result, regardless of whether
// it arrived as a bare string, an array, or only via the stream URL.
type PredictionStatus struct {
	Status    string
	OutputURL string
	Err       string
}
