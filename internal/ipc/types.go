package ipc

import (
	"path/filepath"
	"time"

	"visionrecall/internal/queue"
)

// QueueItem is the wire form of a queue item.
type QueueItem struct {
	ID           int64  `json:"id"`
	SourcePath   string `json:"source_path"`
	FileName     string `json:"file_name"`
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// FromQueueItem converts a queue item into its wire form.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:           item.ID,
		SourcePath:   item.SourcePath,
		FileName:     filepath.Base(item.SourcePath),
		Status:       string(item.Status),
		ErrorMessage: item.ErrorMessage,
		CreatedAt:    formatTime(item.CreatedAt),
		UpdatedAt:    formatTime(item.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the observable queue state plus daemon details.
type StatusResponse struct {
	Running     bool   `json:"running"`
	PID         int    `json:"pid"`
	StartedAt   string `json:"started_at,omitempty"`
	LoopRunning bool   `json:"loop_running"`

	IsProcessing bool        `json:"is_processing"`
	IsPaused     bool        `json:"is_paused"`
	IsStopped    bool        `json:"is_stopped"`
	CurrentItem  string      `json:"current_item,omitempty"`
	Progress     int         `json:"progress"`
	Message      string      `json:"message,omitempty"`
	Total        int         `json:"total"`
	Queue        []QueueItem `json:"queue"`

	QueueStats map[string]int `json:"queue_stats"`
	LastError  string         `json:"last_error,omitempty"`
	LastItem   *QueueItem     `json:"last_item,omitempty"`

	IntakeEnabled  bool   `json:"intake_enabled"`
	IntakeDir      string `json:"intake_dir"`
	IntakeInterval string `json:"intake_interval,omitempty"`
	QueueDBPath    string `json:"queue_db_path"`
	LockPath       string `json:"lock_path"`
	SocketPath     string `json:"socket_path"`
}

// EnqueueRequest queues screenshots by path.
type EnqueueRequest struct {
	Paths []string `json:"paths"`
}

// EnqueueResponse lists queued items and rejected paths.
type EnqueueResponse struct {
	Items  []QueueItem `json:"items"`
	Errors []string    `json:"errors,omitempty"`
}

// ControlRequest carries no arguments; used by Pause, Resume, Stop and Toggle.
type ControlRequest struct{}

// ControlResponse reports the resulting flags.
type ControlResponse struct {
	Action       string `json:"action"`
	IsProcessing bool   `json:"is_processing"`
	IsPaused     bool   `json:"is_paused"`
	IsStopped    bool   `json:"is_stopped"`
}

// ClearRequest removes every item, or only finished ones when TerminalOnly is set.
type ClearRequest struct {
	TerminalOnly bool `json:"terminal_only"`
}

// ClearResponse reports number of removed entries.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// RemoveRequest removes items by id or source path.
type RemoveRequest struct {
	Refs []string `json:"refs"`
}

// RemoveResponse reports number of removed entries and refs that matched nothing.
type RemoveResponse struct {
	Removed  int64    `json:"removed"`
	NotFound []string `json:"not_found,omitempty"`
}

// QueueListRequest filters queue listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains journal entries.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// RetryRequest retries failed items. Empty list means all failed items.
type RetryRequest struct {
	IDs []int64 `json:"ids"`
}

// RetryResponse reports number of retried items.
type RetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue counts per status.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalItems       int      `json:"total_items"`
	Error            string   `json:"error"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64  `json:"offset"`
	Limit      int    `json:"limit"`
	Follow     bool   `json:"follow"`
	WaitMillis int    `json:"wait_millis"`
	Level      string `json:"level,omitempty"`
	ItemID     int64  `json:"item_id,omitempty"`
	Component  string `json:"component,omitempty"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
