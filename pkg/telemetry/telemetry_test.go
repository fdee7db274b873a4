package telemetry

import (
	"testing"

	"github.com/basslineaudio/sessioncore/pkg/plugin"
)

func TestReportFailureDropsWhenFull(t *testing.T) {
	r := NewReporter(2)
	r.ReportFailure("synthA", plugin.StatusError, 100)
	r.ReportFailure("synthA", plugin.StatusError, 200)
	r.ReportFailure("synthA", plugin.StatusError, 300) // buffer full: dropped

	if r.Dropped() != 1 {
		t.Fatalf("Dropped() = %d, want 1", r.Dropped())
	}
}

func TestDrainEmptiesBuffer(t *testing.T) {
	r := NewReporter(4)
	r.ReportFailure("synthA", plugin.StatusError, 1)
	r.ReportFailure("synthB", plugin.StatusError, 2)

	r.Drain()

	select {
	case ev := <-r.ch:
		t.Fatalf("expected buffer empty after Drain, found %+v", ev)
	default:
	}
}
