package rtcsession

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shynome/rtcsession/capture"
	"github.com/shynome/rtcsession/gate"
	"github.com/shynome/rtcsession/internal/loop"
	"github.com/shynome/rtcsession/negotiation"
	"github.com/shynome/rtcsession/report"
	"github.com/shynome/rtcsession/signaler"
	"github.com/sirupsen/logrus"
)

type (
	State        = negotiation.State
	Role         = negotiation.Role
	Stream       = negotiation.Stream
	Change       = negotiation.Change
	Capabilities = negotiation.Capabilities
	CloseOptions = negotiation.CloseOptions
)

const remoteHangup = "Remote side hung up"

type CloseEvent struct {
	// SentSignal reports whether the remote party was told about the close.
	SentSignal bool
	Reason     string
	Report     *report.Report
	// From is the state the session was in when it closed.
	From State
}

type ModifyPhase int

const (
	// ModifyRequested: this side asked the remote party for a change.
	ModifyRequested ModifyPhase = iota
	// ModifyAgreed: both sides agreed and a new round begins.
	ModifyAgreed
	// ModifySettled: the round finished, Err tells how.
	ModifySettled
	// ModifyRefused: a remote request was turned down.
	ModifyRefused
)

type ModifyEvent struct {
	Phase  ModifyPhase
	Change Change
	Err    error
}

type SessionConfig struct {
	Info      negotiation.Info
	Transport negotiation.TransportFactory
	Signaling negotiation.Signaling
	Logger    *logrus.Entry
	// AutoApprove approves every round without waiting for Approve.
	AutoApprove bool
	// Capture is released when the session ends.
	Capture *capture.Handle
}

// Session is one negotiated peer-to-peer session. Every method is safe for
// concurrent use. Event handlers run one at a time on a goroutine of their
// own and may call back into the session.
type Session struct {
	id      string
	role    Role
	log     *logrus.Entry
	factory negotiation.TransportFactory
	auto    bool
	capture *capture.Handle

	loop   *loop.Loop
	events *loop.Loop
	engine *negotiation.Engine
	state  atomic.Int32

	handlersL sync.Mutex
	onClose   []func(CloseEvent)
	onState   []func(State)
	onStream  []func(Stream)
	onModify  []func(ModifyEvent)

	done   chan struct{}
	result CloseEvent
	detach func()

	call *Call
	data *DataSession
}

func NewSession(cfg SessionConfig) *Session {
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("session", cfg.Info.ID)
	s := &Session{
		id:      cfg.Info.ID,
		role:    cfg.Info.Role,
		log:     log,
		factory: cfg.Transport,
		auto:    cfg.AutoApprove,
		capture: cfg.Capture,
		loop:    loop.New(),
		events:  loop.New(),
		done:    make(chan struct{}),
	}
	s.engine = negotiation.NewEngine(negotiation.Config{
		Info:      cfg.Info,
		Signaling: cfg.Signaling,
		Logger:    log,
		Hooks: negotiation.Hooks{
			State: s.stateChanged,
			Failed: func(err error) {
				s.log.WithError(err).Error("Negotiation failed")
				s.close(CloseOptions{Reason: err.Error()})
			},
			Abandoned: func(err error) {
				s.log.WithError(err).Info("Session abandoned before negotiation")
				s.close(CloseOptions{Reason: err.Error(), Suppress: true})
			},
		},
	})
	s.engine.Renegotiation().SetHooks(negotiation.ModifyHooks{
		Agreed: s.agreed,
		Settled: func(change Change, err error) {
			s.emitModify(ModifyEvent{Phase: ModifySettled, Change: change, Err: err})
		},
	})
	return s
}

func (s *Session) ID() string { return s.id }

// InitialRole is the role the session was created with. Renegotiation may
// flip the current role, see Role.
func (s *Session) InitialRole() Role { return s.role }

// State is the application visible state. It is Ended once the session
// closed.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Done() <-chan struct{} { return s.done }

// Result returns the close event. It is only valid after Done is closed.
func (s *Session) Result() CloseEvent { return s.result }

// Call returns the media call view of the session, or nil.
func (s *Session) Call() *Call { return s.call }

// DataSession returns the data channel view of the session, or nil.
func (s *Session) DataSession() *DataSession { return s.data }

func (s *Session) OnClose(fn func(CloseEvent)) {
	s.handlersL.Lock()
	defer s.handlersL.Unlock()
	s.onClose = append(s.onClose, fn)
}

func (s *Session) OnStateChange(fn func(State)) {
	s.handlersL.Lock()
	defer s.handlersL.Unlock()
	s.onState = append(s.onState, fn)
}

func (s *Session) OnStream(fn func(Stream)) {
	s.handlersL.Lock()
	defer s.handlersL.Unlock()
	s.onStream = append(s.onStream, fn)
}

func (s *Session) OnModify(fn func(ModifyEvent)) {
	s.handlersL.Lock()
	defer s.handlersL.Unlock()
	s.onModify = append(s.onModify, fn)
}

// do runs fn on the session loop. A closed session reports
// ErrTransportUnavailable.
func (s *Session) do(fn func() error) error {
	err := s.loop.Do(fn)
	if errors.Is(err, loop.ErrStopped) {
		return negotiation.ErrTransportUnavailable
	}
	return err
}

func (s *Session) post(fn func()) {
	if !s.loop.Post(fn) {
		s.log.Debug("Dropping event for closed session")
	}
}

// Start creates the transport and begins the session.
func (s *Session) Start() error {
	return s.do(func() error {
		if err := s.engine.Begin(); err != nil {
			return err
		}
		info := s.engine.Info()
		t, err := s.factory(info, negotiation.TransportEvents{
			OnCandidate: func(c negotiation.Candidate) {
				s.post(func() { s.engine.LocalCandidate(c) })
			},
			OnStream: func(st Stream) {
				s.post(func() {
					s.engine.StreamObserved()
					s.emitStream(st)
				})
			},
			OnNegotiationNeeded: func() {
				s.log.Debug("Negotiation needed")
			},
			OnConnectionState: func(connected bool) {
				s.log.WithField("connected", connected).Debug("Connection state changed")
			},
		})
		if err != nil {
			s.close(CloseOptions{Reason: "transport: " + err.Error(), Suppress: true})
			return err
		}
		s.engine.Attach(t)
		if s.auto {
			return s.engine.Approve()
		}
		return nil
	})
}

// Approve marks the current round as approved by the application.
func (s *Session) Approve() error {
	return s.do(s.engine.Approve)
}

// Reject declines the current round. A session rejected before any
// exchange ends.
func (s *Session) Reject(reason string) error {
	return s.do(func() error { return s.engine.Deny(reason) })
}

// MediaFailed reports that local media could not be captured.
func (s *Session) MediaFailed(cause error) error {
	return s.do(func() error {
		if err := s.engine.CaptureFailed(cause); err != nil {
			return err
		}
		s.close(CloseOptions{
			Reason:   "media capture failed: " + cause.Error(),
			Suppress: !s.engine.SentSDP(),
		})
		return nil
	})
}

func (s *Session) ReceiveOffer(offer negotiation.SDP) error {
	return s.do(func() error { return s.engine.ReceiveOffer(offer) })
}

func (s *Session) ReceiveAnswer(answer negotiation.SDP, fromConnection string) error {
	return s.do(func() error { return s.receiveAnswer(answer, fromConnection) })
}

func (s *Session) receiveAnswer(answer negotiation.SDP, fromConnection string) error {
	err := s.engine.AcceptRemoteAnswer(answer, fromConnection)
	if errors.Is(err, negotiation.ErrDuplicateSignal) {
		s.log.Debug("Ignoring answer, one was already applied")
		return nil
	}
	return err
}

func (s *Session) ReceiveCandidate(c negotiation.Candidate) error {
	return s.do(func() error {
		s.engine.RemoteCandidate(c)
		return nil
	})
}

// ReceiveConnected handles the initiator telling which connection won.
func (s *Session) ReceiveConnected(connectionID string) error {
	return s.do(func() error {
		s.receiveConnected(connectionID)
		return nil
	})
}

func (s *Session) receiveConnected(connectionID string) {
	if s.engine.ConnectedElsewhere(connectionID) {
		s.close(CloseOptions{Reason: "answered on another connection", Suppress: true})
	}
}

// ReceiveTerminate closes the session without signaling back.
func (s *Session) ReceiveTerminate(reason string) error {
	return s.do(func() error {
		s.receiveTerminate(reason)
		return nil
	})
}

func (s *Session) receiveTerminate(reason string) {
	if reason == "" {
		reason = remoteHangup
	}
	s.close(CloseOptions{Reason: reason, Suppress: true})
}

func (s *Session) ReceiveModify(sig negotiation.ModifySignal) error {
	return s.do(func() error { return s.receiveModify(sig) })
}

func (s *Session) receiveModify(sig negotiation.ModifySignal) error {
	err := s.engine.Renegotiation().ReceiveModify(sig)
	switch {
	case errors.Is(err, negotiation.ErrRenegotiationCollision),
		errors.Is(err, negotiation.ErrRenegotiationPrecall):
		var change Change
		if sig.Change != nil {
			change = *sig.Change
		}
		s.emitModify(ModifyEvent{Phase: ModifyRefused, Change: change, Err: err})
		return nil
	case errors.Is(err, negotiation.ErrDuplicateSignal):
		s.log.WithField("action", sig.Action).Debug("Ignoring modify")
		return nil
	}
	return err
}

// Modify asks the remote party for a change. The gate resolves when the
// remote party accepts.
func (s *Session) Modify(change Change) (pending *gate.Gate[struct{}], err error) {
	err = s.do(func() (err error) {
		if pending, err = s.engine.Renegotiation().StartModify(change); err != nil {
			return err
		}
		s.emitModify(ModifyEvent{Phase: ModifyRequested, Change: change})
		return nil
	})
	return pending, err
}

// AbortModify gives up on a pending change without telling the remote
// party.
func (s *Session) AbortModify() bool {
	var aborted bool
	s.do(func() error {
		aborted = s.engine.Renegotiation().Abort()
		return nil
	})
	return aborted
}

func (s *Session) agreed(change Change) {
	dc, _ := s.engine.Transport().(negotiation.DataChannels)
	switch change.DataChannel {
	case negotiation.ChannelAdd:
		if dc != nil && s.engine.Role() == negotiation.Initiator {
			label := change.Label
			if label == "" {
				label = DefaultLabel
			}
			if err := dc.OpenDataChannel(label); err != nil {
				s.log.WithError(err).Warn("Couldn't open data channel")
			}
		}
	case negotiation.ChannelRemove:
		if dc != nil {
			if err := dc.CloseDataChannels(); err != nil {
				s.log.WithError(err).Warn("Couldn't close data channels")
			}
		}
	}
	if m, ok := s.engine.Transport().(negotiation.Media); ok && s.engine.Role() == negotiation.Initiator &&
		(change.Capabilities != nil || change.Direction != "") {
		info := s.engine.Info()
		if err := m.SetMedia(info.Capabilities, info.Direction); err != nil {
			s.log.WithError(err).Warn("Couldn't change media")
		}
	}
	if !change.Teardown() && (s.auto || s.engine.Role() == negotiation.Initiator) {
		if err := s.engine.Approve(); err != nil {
			s.log.WithError(err).Warn("Couldn't approve renegotiation")
		}
	}
	s.emitModify(ModifyEvent{Phase: ModifyAgreed, Change: change})
}

// IsActive reports whether the session is live and connected.
func (s *Session) IsActive() bool {
	var active bool
	s.do(func() error {
		active = s.engine.IsActive()
		return nil
	})
	return active
}

// Role is the current role, which renegotiation may have flipped.
func (s *Session) Role() Role {
	role := s.role
	s.do(func() error {
		role = s.engine.Role()
		return nil
	})
	return role
}

func (s *Session) Info() (info negotiation.Info, err error) {
	err = s.do(func() error {
		info = s.engine.Info()
		return nil
	})
	return info, err
}

// RemoteCapabilities returns what the last remote SDP negotiated.
func (s *Session) RemoteCapabilities() (caps Capabilities) {
	s.do(func() error {
		caps = s.engine.RemoteCapabilities()
		return nil
	})
	return caps
}

// Close hangs up and tells the remote party.
func (s *Session) Close() error {
	return s.Hangup(CloseOptions{Reason: "hangup method called"})
}

// Hangup ends the session. Only the first call has any effect.
func (s *Session) Hangup(opts CloseOptions) error {
	err := s.do(func() error {
		s.close(opts)
		return nil
	})
	if errors.Is(err, negotiation.ErrTransportUnavailable) {
		return nil
	}
	return err
}

// deliver routes an inbound envelope onto the session loop.
func (s *Session) deliver(msg signaler.Message) {
	s.post(func() {
		switch msg.Type {
		case signaler.TypeOffer:
			if msg.SDP == nil {
				return
			}
			if err := s.engine.ReceiveOffer(*msg.SDP); err != nil && !errors.Is(err, negotiation.ErrOfferToInitiator) {
				s.log.WithError(err).Debug("Ignoring offer")
			}
		case signaler.TypeAnswer:
			if msg.SDP == nil {
				return
			}
			if err := s.receiveAnswer(*msg.SDP, msg.FromConnection); err != nil {
				s.log.WithError(err).Debug("Ignoring answer")
			}
		case signaler.TypeCandidate:
			if msg.Candidate != nil {
				s.engine.RemoteCandidate(*msg.Candidate)
			}
		case signaler.TypeConnected:
			s.receiveConnected(msg.ConnectionID)
		case signaler.TypeModify:
			if msg.Modify == nil {
				return
			}
			err := s.receiveModify(negotiation.ModifySignal{
				Action:       msg.Modify.Action,
				SessionID:    msg.SessionID,
				ConnectionID: msg.FromConnection,
				Change:       msg.Modify.Change,
			})
			if err != nil {
				s.log.WithError(err).Debug("Ignoring modify")
			}
		case signaler.TypeBye:
			s.receiveTerminate(msg.Reason)
		}
	})
}

// close runs on the session loop.
func (s *Session) close(opts CloseOptions) {
	res, ok := s.engine.Termination().Close(opts)
	if !ok {
		return
	}
	if s.capture != nil {
		if err := s.capture.Release(); err != nil {
			s.log.WithError(err).Debug("Releasing capture")
		}
	}
	ev := CloseEvent{
		SentSignal: res.SentSignal,
		Reason:     res.Reason,
		Report:     res.Report,
		From:       res.From,
	}
	s.result = ev
	s.log.WithFields(logrus.Fields{
		"reason":     ev.Reason,
		"sentSignal": ev.SentSignal,
		"from":       ev.From,
	}).Info("Session closed")

	s.handlersL.Lock()
	handlers := append([]func(CloseEvent){}, s.onClose...)
	s.handlersL.Unlock()
	s.events.Post(func() {
		for _, fn := range handlers {
			fn(ev)
		}
		close(s.done)
	})
	s.events.Stop()
	s.loop.Stop()
	if s.detach != nil {
		s.detach()
	}
}

func (s *Session) stateChanged(st State) {
	s.state.Store(int32(st))
	s.handlersL.Lock()
	handlers := append([]func(State){}, s.onState...)
	s.handlersL.Unlock()
	s.events.Post(func() {
		for _, fn := range handlers {
			fn(st)
		}
	})
}

func (s *Session) emitStream(st Stream) {
	s.handlersL.Lock()
	handlers := append([]func(Stream){}, s.onStream...)
	s.handlersL.Unlock()
	s.events.Post(func() {
		for _, fn := range handlers {
			fn(st)
		}
	})
}

func (s *Session) emitModify(ev ModifyEvent) {
	s.handlersL.Lock()
	handlers := append([]func(ModifyEvent){}, s.onModify...)
	s.handlersL.Unlock()
	s.events.Post(func() {
		for _, fn := range handlers {
			fn(ev)
		}
	})
}
