package models

import (
	"time"
)

// Known detector labels
const (
	LabelFireExtinguisher = "FireExtinguisher"
	LabelOxygenTank       = "OxygenTank"
	LabelToolBox          = "ToolBox"
)

// Detection represents one labeled object instance returned by the detector backend
type Detection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"` // [x1, y1, x2, y2]
}

// DetectRequest represents the request sent to the backend /detect endpoint
type DetectRequest struct {
	Image string `json:"image" validate:"required,startswith=data:image/"`
}

// DetectResponse represents the backend /detect response body
type DetectResponse struct {
	Success    bool        `json:"success"`
	Detections []Detection `json:"detections"`
	Count      int         `json:"count"`
	Error      string      `json:"error,omitempty"`
}

// CycleResult represents the detections produced by one successful detection request
type CycleResult struct {
	ID          string      `json:"id"`
	Detections  []Detection `json:"detections"`
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	CompletedAt time.Time   `json:"completed_at"`
}

// BackendStatus is the reachability of the detector backend
type BackendStatus string

const (
	BackendChecking BackendStatus = "checking"
	BackendOnline   BackendStatus = "online"
	BackendOffline  BackendStatus = "offline"
)

// LoopState represents a point-in-time copy of the live detection loop state
type LoopState struct {
	IsRunning         bool          `json:"is_running"`
	IsRequestInFlight bool          `json:"is_request_in_flight"`
	LastError         string        `json:"last_error,omitempty"`
	BackendStatus     BackendStatus `json:"backend_status"`
	Current           *CycleResult  `json:"current"`
	NoDetections      bool          `json:"no_detections"`
	CyclesCompleted   int64         `json:"cycles_completed"`
	CyclesFailed      int64         `json:"cycles_failed"`
	TicksSkipped      int64         `json:"ticks_skipped"`
}

// HistoryResponse represents the live loop history, newest first
type HistoryResponse struct {
	Capacity int           `json:"capacity"`
	Results  []CycleResult `json:"results"`
}

// UploadResponse represents the response of an upload-and-detect request
type UploadResponse struct {
	Detections   []Detection `json:"detections"`
	Count        int         `json:"count"`
	NoDetections bool        `json:"no_detections"`
	Summary      Summary     `json:"summary"`
}

// Summary holds per-label counts of a detection set
type Summary struct {
	TotalObjects      int `json:"total_objects"`
	FireExtinguishers int `json:"fire_extinguishers"`
	OxygenTanks       int `json:"oxygen_tanks"`
	Toolboxes         int `json:"toolboxes"`
}

// ExportDocument is the downloadable detection results file
type ExportDocument struct {
	Timestamp  string      `json:"timestamp"`
	Image      *string     `json:"image"`
	Detections []Detection `json:"detections"`
	Summary    Summary     `json:"summary"`
}

// BackendResponse represents the backend status response
type BackendResponse struct {
	Status     BackendStatus `json:"status"`
	BackendURL string        `json:"backend_url"`
}

// StatsResponse represents statistics response
type StatsResponse struct {
	CyclesCompleted   int64   `json:"cycles_completed"`
	CyclesFailed      int64   `json:"cycles_failed"`
	TicksSkipped      int64   `json:"ticks_skipped"`
	UploadsProcessed  int64   `json:"uploads_processed"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status  string        `json:"status"`
	Backend BackendStatus `json:"backend"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
