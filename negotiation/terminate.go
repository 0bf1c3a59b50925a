package negotiation

import (
	"github.com/shynome/rtcsession/report"
)

type CloseOptions struct {
	Reason string
	// Suppress skips the terminate signal.
	Suppress bool
}

type CloseResult struct {
	// SentSignal reports whether the remote party was sent a terminate.
	SentSignal bool
	Report     *report.Report
	Reason     string
	// From is the state the session was in when it closed.
	From State
}

// Termination tears a session down exactly once.
type Termination struct {
	e *Engine
}

// Close ends the session. Only the first call does anything; it reports
// false for every later call.
func (t *Termination) Close(opts CloseOptions) (CloseResult, bool) {
	e := t.e
	from := e.machine.State()
	if !e.machine.End() {
		return CloseResult{}, false
	}
	if e.hooks.State != nil {
		e.hooks.State(Ended)
	}

	send := !opts.Suppress
	if e.info.Role == Initiator && !e.sentSDP {
		send = false
	}
	if send {
		e.sendTerminate(opts.Reason)
	}

	r := e.round
	r.Approved.Reject(ErrClosedBeforeApproval)
	for _, g := range r.pending() {
		g.Reject(ErrTransportUnavailable)
	}
	e.modify.cancel()

	e.report.Stop(opts.Reason)
	err := e.signaling.SignalReport(ReportSignal{
		Report:       e.report,
		ConnectionID: e.info.RemoteConnectionID,
	})
	if err != nil {
		e.log.WithError(err).Debug("Couldn't send report")
	}
	e.release()

	return CloseResult{
		SentSignal: e.terminateSent,
		Report:     e.report,
		Reason:     e.report.StoppedReason,
		From:       from,
	}, true
}
