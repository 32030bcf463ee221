package tools

import (
	"log"

	"waypoint/internal/audit"
)

// PhaseObserver receives notifications after successful phase activity.
// Implementations must be cheap and must not fail the tool call.
type PhaseObserver interface {
	ObserveEvent(e audit.Entry)
}

// AuditBridge forwards phase activity to the audit trail. Recording
// failures are logged and swallowed — the trail is best-effort and must
// never break a tool response.
type AuditBridge struct {
	log *audit.Log
}

// NewAuditBridge creates a bridge over the given audit log.
func NewAuditBridge(l *audit.Log) *AuditBridge {
	return &AuditBridge{log: l}
}

// ObserveEvent records one entry in the trail.
func (b *AuditBridge) ObserveEvent(e audit.Entry) {
	if b == nil || b.log == nil {
		return
	}
	if err := b.log.Record(e); err != nil {
		log.Printf("WARNING: audit record: %v", err)
	}
}

// notifyObserver is the nil-safe call every tool uses after a
// successful state change.
func notifyObserver(obs PhaseObserver, e audit.Entry) {
	if obs == nil {
		return
	}
	obs.ObserveEvent(e)
}
