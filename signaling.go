package rtcsession

import (
	"github.com/shynome/rtcsession/negotiation"
	"github.com/shynome/rtcsession/signaler"
)

// endpointSignaling addresses a session's signals to its remote endpoint.
type endpointSignaling struct {
	client *Client
	remote string
}

var _ negotiation.Signaling = (*endpointSignaling)(nil)

func (s *endpointSignaling) send(msg signaler.Message) error {
	if msg.Type != signaler.TypeReport {
		msg.To = s.remote
	}
	return s.client.send(msg)
}

func (s *endpointSignaling) SignalOffer(sig negotiation.OfferSignal) error {
	return s.send(signaler.Message{
		Type:      signaler.TypeOffer,
		SessionID: sig.SessionID,
		SDP:       &sig.SDP,
	})
}

func (s *endpointSignaling) SignalAnswer(sig negotiation.AnswerSignal) error {
	return s.send(signaler.Message{
		Type:         signaler.TypeAnswer,
		SessionID:    sig.SessionID,
		ToConnection: sig.ConnectionID,
		SDP:          &sig.SDP,
	})
}

func (s *endpointSignaling) SignalConnected(sig negotiation.ConnectedSignal) error {
	return s.send(signaler.Message{
		Type:         signaler.TypeConnected,
		SessionID:    sig.SessionID,
		ConnectionID: sig.ConnectionID,
	})
}

func (s *endpointSignaling) SignalCandidate(sig negotiation.CandidateSignal) error {
	return s.send(signaler.Message{
		Type:         signaler.TypeCandidate,
		SessionID:    sig.SessionID,
		ToConnection: sig.ConnectionID,
		Candidate:    &sig.Candidate,
	})
}

func (s *endpointSignaling) SignalModify(sig negotiation.ModifySignal) error {
	return s.send(signaler.Message{
		Type:         signaler.TypeModify,
		SessionID:    sig.SessionID,
		ToConnection: sig.ConnectionID,
		Modify:       &signaler.Modify{Action: sig.Action, Change: sig.Change},
	})
}

func (s *endpointSignaling) SignalTerminate(sig negotiation.TerminateSignal) error {
	return s.send(signaler.Message{
		Type:         signaler.TypeBye,
		SessionID:    sig.SessionID,
		ToConnection: sig.ConnectionID,
		Reason:       sig.Reason,
	})
}

func (s *endpointSignaling) SignalReport(sig negotiation.ReportSignal) error {
	return s.send(signaler.Message{
		Type:      signaler.TypeReport,
		SessionID: sig.Report.SessionID,
		Report:    sig.Report,
	})
}
