// Package report forwards relay failures to an external error tracker.
package report

import (
	"fmt"

	"github.com/getsentry/raven-go"
)

// Reporter accepts errors that cost a client its reply.
type Reporter interface {
	Report(err error, tags map[string]string)
}

// SentryReporter reports errors to Sentry.
type SentryReporter struct {
	client *raven.Client
}

// NoopReporter drops every error.
type NoopReporter struct{}

// NewSentryReporter creates a reporter for the given DSN. The release is attached to every event.
func NewSentryReporter(dsn string, release string) (*SentryReporter, error) {
	client, err := raven.New(dsn)
	if err != nil {
		return nil, fmt.Errorf("report: error configuring sentry: err=%v", err)
	}
	client.SetRelease(release)

	return &SentryReporter{client: client}, nil
}

// Report captures the error asynchronously.
func (r *SentryReporter) Report(err error, tags map[string]string) {
	r.client.CaptureError(err, tags)
}

// Close waits for queued events to be sent.
func (r *SentryReporter) Close() error {
	r.client.Wait()
	r.client.Close()
	return nil
}

// Report noops.
func (NoopReporter) Report(err error, tags map[string]string) {}
