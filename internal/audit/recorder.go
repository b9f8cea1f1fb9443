package audit

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/registration"
)

// writeTimeout bounds a single insert so a locked database cannot stall
// event delivery.
const writeTimeout = 5 * time.Second

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

// Recorder writes every registration event to a Repository.
// It implements registration.Observer.
type Recorder struct {
	repo   Repository
	logger Logger
}

// NewRecorder creates a recorder. logger may be nil.
func NewRecorder(repo Repository, logger Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger}
}

// RegistrationChanged records ev. Failures are logged and otherwise ignored.
func (r *Recorder) RegistrationChanged(ctx context.Context, ev registration.Event) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	entry := EntryFromEvent(ev)
	if err := r.repo.Create(ctx, &entry); err != nil && r.logger != nil {
		r.logger.Warn("failed to record registration event",
			"event", string(ev.Type),
			"endpoint", ev.Client.Endpoint,
			"error", err,
		)
	}
}

// EntryFromEvent converts a registration event to an audit entry.
func EntryFromEvent(ev registration.Event) Entry {
	return Entry{
		Event:       string(ev.Type),
		Reason:      ev.Reason,
		Endpoint:    ev.Client.Endpoint,
		Location:    ev.Client.Location,
		Lifetime:    ev.Client.Lifetime,
		Binding:     string(ev.Client.Binding),
		Version:     ev.Client.Version,
		SMSNumber:   ev.Client.SMSNumber,
		ObjectCount: len(ev.Client.Objects),
		CreatedAt:   ev.Time,
	}
}
