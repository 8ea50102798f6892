package types

import "mai/internal/params"

type ErrorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status    int   `json:"status"`
	TimeStamp int64 `json:"timestamp"`
}

type NodeInputs struct {
	Required []params.Spec `json:"required"`
	Optional []params.Spec `json:"optional,omitempty"`
}

type NodeOutput struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type NodeInfo struct {
	Class          string       `json:"class"`
	DisplayName    string       `json:"displayName"`
	Category       string       `json:"category"`
	TimeoutSeconds float64      `json:"timeoutSeconds,omitempty"`
	Inputs         NodeInputs   `json:"inputs"`
	Outputs        []NodeOutput `json:"outputs"`
}

type ListNodesResponse struct {
	Nodes []NodeInfo `json:"nodes"`
}

// InvokeRequest carries raw node inputs. Images are given as base64 encoded
// stills or as {"shape": [...], "data": [...]} tensors.
type InvokeRequest struct {
	Inputs map[string]any `json:"inputs"`
}

type InvokeResponse struct {
	Class   string        `json:"class"`
	Outputs []OutputValue `json:"outputs"`
}

type OutputValue struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// EncodedImage is an image batch as one base64 PNG per element.
type EncodedImage struct {
	Shape    []int    `json:"shape"`
	MimeType string   `json:"mimeType"`
	Images   []string `json:"images"`
}

type EncodedVideo struct {
	URL      string `json:"url"`
	MimeType string `json:"mimeType"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data"`
	Degraded bool   `json:"degraded"`
}

type EncodedAudio struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type JobRequest struct {
	ClientID string         `json:"clientId"`
	Class    string         `json:"class"`
	Inputs   map[string]any `json:"inputs"`
}

type JobResponse struct {
	JobID string `json:"jobId"`
}

type JobStatusResponse struct {
	JobID          string        `json:"jobId"`
	ClientID       string        `json:"clientId"`
	Class          string        `json:"class"`
	Status         string        `json:"status"`
	GeneratedTexts []string      `json:"generatedTexts"`
	Outputs        []OutputValue `json:"outputs,omitempty"`
	Error          string        `json:"error,omitempty"`
	CreatedAt      int64         `json:"createdAt"`
	FinishedAt     int64         `json:"finishedAt,omitempty"`
}
