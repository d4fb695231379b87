package dto

type WakeupRequest struct {
	Word       string  `json:"word"`
	Direction  int     `json:"direction"`
	Confidence float64 `json:"confidence"`
}

type TextRequest struct {
	Text string `json:"text"`
}

type NetworkRequest struct {
	Connected bool `json:"connected"`
}

type VolumeRequest struct {
	Volume *int `json:"volume"`
}

type MuteRequest struct {
	Muted *bool `json:"muted"`
}

type PromptRequest struct {
	URL string `json:"url"`
}

// AcceptedResponse acknowledges an input that is processed asynchronously.
type AcceptedResponse struct {
	Status string `json:"status"`
}

func Accepted() AcceptedResponse {
	return AcceptedResponse{Status: "accepted"}
}
