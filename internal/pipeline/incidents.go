package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/veracitylabs/veracity/internal/model"
)

// IncidentLog is the append-only record of detected hallucinations and
// unexpected stage failures. Entries are never deleted within the process
// lifetime.
type IncidentLog struct {
	mu     sync.RWMutex
	items  []model.Incident
	logger *slog.Logger
}

// NewIncidentLog creates an empty log.
func NewIncidentLog(logger *slog.Logger) *IncidentLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &IncidentLog{logger: logger}
}

// Record appends an incident and emits it as a structured event.
func (l *IncidentLog) Record(requestID string, stage model.Stage, detail string, fatal bool) model.Incident {
	incident := model.Incident{
		RequestID: requestID,
		Stage:     stage,
		Detail:    detail,
		Fatal:     fatal,
		Timestamp: time.Now().UTC(),
	}

	l.mu.Lock()
	l.items = append(l.items, incident)
	l.mu.Unlock()

	level := slog.LevelWarn
	if fatal {
		level = slog.LevelError
	}
	l.logger.Log(context.Background(), level, "verification incident",
		"request_id", requestID, "stage", string(stage), "detail", detail, "fatal", fatal)

	return incident
}

// ByRequest returns the incidents recorded for one request.
func (l *IncidentLog) ByRequest(requestID string) []model.Incident {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []model.Incident
	for _, inc := range l.items {
		if inc.RequestID == requestID {
			out = append(out, inc)
		}
	}
	return out
}

// All returns a copy of every incident.
func (l *IncidentLog) All() []model.Incident {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Incident, len(l.items))
	copy(out, l.items)
	return out
}
