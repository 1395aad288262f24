package monitor

import (
	"fmt"
	"time"
)

// Kind distinguishes what a monitor watches.
type Kind string

const (
	KindConditional Kind = "conditional" // protocol stop condition
	KindDevice      Kind = "device"      // periodic device parameter
)

// Status is the lifecycle state of a monitor record.
type Status string

const (
	StatusActive  Status = "active"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

// Record describes one background monitor. Callers only ever see copies.
type Record struct {
	ID        string        `json:"id"`
	Kind      Kind          `json:"kind"`
	Protocol  string        `json:"protocol,omitempty"`
	Condition string        `json:"condition,omitempty"`
	Device    string        `json:"device,omitempty"`
	Parameter string        `json:"parameter,omitempty"`
	Interval  time.Duration `json:"interval"`
	Created   time.Time     `json:"created"`
	Status    Status        `json:"status"`
	Err       string        `json:"error,omitempty"` // last loop error
}

// Target is the protocol name for conditional monitors and the device name
// for device monitors. It is the middle part of the monitor ID.
func (r Record) Target() string {
	if r.Kind == KindConditional {
		return r.Protocol
	}
	return r.Device
}

// String renders a single-line summary used by the /monitors command.
func (r Record) String() string {
	switch r.Kind {
	case KindConditional:
		return fmt.Sprintf("%s [%s] protocol=%s condition=%q", r.ID, r.Status, r.Protocol, r.Condition)
	default:
		return fmt.Sprintf("%s [%s] device=%s parameter=%s every %s", r.ID, r.Status, r.Device, r.Parameter, r.Interval)
	}
}
