// Package calling implements the call-session lifecycle: it translates
// signaling notifications into session state, owns the answer/reject/hangup
// decision, and wires each answered call's recognition stream into the voice
// pipeline.
package calling

import (
	"encoding/json"
	"strings"
)

// ChangeType is the lifecycle event carried by a signaling notification.
type ChangeType int

const (
	// ChangeUnknown covers unrecognised change types; they are logged and
	// otherwise ignored.
	ChangeUnknown ChangeType = iota

	// ChangeCreated announces a new incoming call.
	ChangeCreated

	// ChangeUpdated is a state or media refresh for a tracked call.
	ChangeUpdated

	// ChangeDeleted announces the end of a call.
	ChangeDeleted
)

// String returns the wire-format name of the change type.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ParseChangeType maps the wire value onto the closed set of handled
// lifecycle events. Matching is case-insensitive; anything unrecognised maps
// to [ChangeUnknown].
func ParseChangeType(s string) ChangeType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created":
		return ChangeCreated
	case "updated":
		return ChangeUpdated
	case "deleted":
		return ChangeDeleted
	default:
		return ChangeUnknown
	}
}

// Notification is one inbound signaling event.
type Notification struct {
	// ChangeType is the raw lifecycle event value.
	ChangeType string `json:"changeType"`

	// Resource is the resource path the event refers to; the call ID is
	// derived from it.
	Resource string `json:"resource"`

	// ResourceData is the opaque event payload. The lifecycle machine never
	// inspects it.
	ResourceData json.RawMessage `json:"resourceData,omitempty"`
}

// Envelope mirrors the callback collection payload: {"value": [...]}.
type Envelope struct {
	Value []Notification `json:"value"`
}

// ExtractCallID derives the call identifier from a notification resource
// path. It returns the segment following the first path segment literally
// equal to "calls" (case-insensitive); when no such segment exists it falls
// back to the final path segment. The derivation never fails: malformed or
// empty input comes back unchanged.
func ExtractCallID(resource string) string {
	trimmed := strings.Trim(resource, "/")
	if trimmed == "" {
		return resource
	}

	segments := strings.Split(trimmed, "/")
	for i, seg := range segments {
		if strings.EqualFold(seg, "calls") && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return segments[len(segments)-1]
}
