package dto

import "fino-ai/internal/service"

type PreprocessRequest struct {
	// Payloads to normalize. Empty triggers a fetch from the configured source.
	Payloads []service.RawPayload `json:"payloads"`
}

type PreprocessResponse struct {
	SourceType string               `json:"source_type"`
	SourceMode string               `json:"source_mode"`
	Normalized int                  `json:"normalized"`
	Failed     int                  `json:"failed"`
	Items      []service.ItemReport `json:"items"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
	Kind  string `json:"kind,omitempty"`
}
