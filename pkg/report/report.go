// Package report publishes transport lifecycle events.
package report

import (
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/radio.go/pkg/admission"
	"github.com/robotalks/radio.go/pkg/framework"
	"github.com/robotalks/radio.go/pkg/hci"
	pb "github.com/robotalks/radio.go/pkg/proto/radio/v1"
	"github.com/robotalks/radio.go/pkg/radio"
)

// Sink receives lifecycle events.
type Sink interface {
	Report(*pb.TransportEvent) error
}

// SinkFunc is the func form of Sink.
type SinkFunc func(*pb.TransportEvent) error

// Report implements Sink.
func (f SinkFunc) Report(ev *pb.TransportEvent) error {
	return f(ev)
}

// Mux reports to multiple Sinks.
type Mux struct {
	Sinks []Sink
}

// Add adds more sinks.
func (m *Mux) Add(sinks ...Sink) *Mux {
	m.Sinks = append(m.Sinks, sinks...)
	return m
}

// Report implements Sink.
func (m *Mux) Report(ev *pb.TransportEvent) error {
	var errs framework.AggregatedError
	for _, sink := range m.Sinks {
		errs.Add(sink.Report(ev))
	}
	return errs.Aggregate()
}

// IdentityFunc looks up the identity of a chip.
type IdentityFunc func(radio.ChipID) (hci.ChipIdentity, bool)

// Reporter converts request completions into events for a Sink.
type Reporter struct {
	Host     string
	Sink     Sink
	Identity IdentityFunc
	// Now is the clock, time.Now if nil.
	Now func() time.Time
}

// RequestCompleted implements admission.Observer.
func (r *Reporter) RequestCompleted(comp admission.Completion) {
	ev := r.Event(comp)
	if err := r.Sink.Report(ev); err != nil {
		glog.Warningf("report %s: %v", comp.Chip, err)
	}
}

// Event builds the event of a completion.
func (r *Reporter) Event(comp admission.Completion) *pb.TransportEvent {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	ev := &pb.TransportEvent{
		Host:        r.Host,
		Chip:        string(comp.Chip),
		Client:      pb.Stack(comp.Client),
		Op:          pb.Op(comp.Op),
		Result:      pb.Result(comp.Result),
		Async:       comp.Async,
		RefCount:    int32(comp.RefCount),
		TimestampMs: now().UnixNano() / int64(time.Millisecond),
	}
	if r.Identity != nil {
		if id, ok := r.Identity(comp.Chip); ok {
			ev.Identity = &pb.ChipIdentity{
				ProjectType:  uint32(id.ProjectType),
				VersionMajor: uint32(id.VersionMajor),
				VersionMinor: uint32(id.VersionMinor),
				Script:       id.ScriptName(),
			}
		}
	}
	return ev
}

// LogSink writes events to glog.
type LogSink struct {
	// Verbosity of successful events, failures are always logged as warnings.
	Verbosity glog.Level
}

// Report implements Sink.
func (s *LogSink) Report(ev *pb.TransportEvent) error {
	if ev.Result == pb.Result_RESULT_SUCCESS {
		if glog.V(s.Verbosity) {
			glog.Infof("EVT %s", ev.String())
		}
		return nil
	}
	glog.Warningf("EVT %s", ev.String())
	return nil
}
