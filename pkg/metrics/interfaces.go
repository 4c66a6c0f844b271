// Package metrics pkg/metrics/interfaces.go
package metrics

import (
	"time"

	"github.com/carverauto/siteradar/pkg/models"
)

// Record kinds used when counting failed writes.
const (
	KindMeta  = "meta"
	KindIssue = "issue"
	KindEvent = "event"
)

// Pass results.
const (
	ResultOK        = "ok"
	ResultPartial   = "partial"
	ResultReadError = "read_error"
)

// Recorder receives reconciliation and service metrics.
type Recorder interface {
	PassCompleted(result string, elapsed time.Duration)
	IssuesCreated(n int)
	IssuesResolved(n int)
	EventsWritten(n int)
	WriteFailed(kind string)
	ObserveStatus(meta *models.Meta, openIssues int)
	SetNotifierClients(n int)
	SetStoreConnected(connected bool)
}

// Nop discards everything.
type Nop struct{}

func (Nop) PassCompleted(string, time.Duration) {}
func (Nop) IssuesCreated(int) {}
func (Nop) IssuesResolved(int) {}
func (Nop) EventsWritten(int) {}
func (Nop) WriteFailed(string) {}
func (Nop) ObserveStatus(*models.Meta, int) {}
func (Nop) SetNotifierClients(int) {}
func (Nop) SetStoreConnected(bool) {}
