package wamp

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/router"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/shynome/rtcsession/report"
	"github.com/shynome/rtcsession/signaler"
	"github.com/sirupsen/logrus"
)

// Server is a WAMP router relaying signals between endpoints. It serves
// websocket clients over HTTP and keeps the reports they publish.
type Server struct {
	router  router.Router
	wss     *router.WebsocketServer
	monitor *client.Client
	logger  *logrus.Entry

	reports  []*report.Report
	reportsL sync.Mutex
}

var (
	_ http.Handler     = (*Server)(nil)
	_ signaler.Reports = (*Server)(nil)
)

func NewServer(realm string, logger *logrus.Entry) (_ *Server, err error) {
	defer err2.Handle(&err)
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	logger = logger.WithField("prefix", "wamp")

	routerConfig := &router.Config{
		RealmConfigs: []*router.RealmConfig{
			{
				URI:           wamp.URI(realm),
				AnonymousAuth: true,
			},
		},
	}
	nxr := try.To1(router.NewRouter(routerConfig, logger))

	s := &Server{
		router: nxr,
		wss:    router.NewWebsocketServer(nxr),
		logger: logger,
	}
	if err := s.listenReports(realm); err != nil {
		nxr.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) listenReports(realm string) (err error) {
	defer err2.Handle(&err)
	s.monitor = try.To1(client.ConnectLocal(s.router, client.Config{
		Realm:  realm,
		Logger: s.logger,
	}))
	try.To(s.monitor.Subscribe(ReportsTopic, s.record, nil))
	return nil
}

// Router is the underlying router, for in-process clients.
func (s *Server) Router() router.Router { return s.router }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.wss.ServeHTTP(w, r)
}

func (s *Server) record(event *wamp.Event) {
	msg, err := decode(event)
	if err != nil {
		s.logger.WithError(err).Warn("Ignoring malformed report")
		return
	}
	if msg.Type != signaler.TypeReport || msg.Report == nil {
		return
	}
	s.reportsL.Lock()
	defer s.reportsL.Unlock()
	s.reports = append(s.reports, msg.Report)
}

func (s *Server) Reports() []*report.Report {
	s.reportsL.Lock()
	defer s.reportsL.Unlock()
	return append([]*report.Report(nil), s.reports...)
}

// Close stops the router and disconnects every client.
func (s *Server) Close() {
	defer s.router.Close()
	if s.monitor == nil {
		return
	}
	if err := s.monitor.Close(); err != nil {
		s.logger.WithError(err).Debug("Closing monitor")
	}
}

func decode(event *wamp.Event) (msg signaler.Message, err error) {
	defer err2.Handle(&err)
	if len(event.Arguments) != 1 {
		return msg, errMalformed
	}
	raw, ok := wamp.AsString(event.Arguments[0])
	if !ok {
		return msg, errMalformed
	}
	try.To(json.Unmarshal([]byte(raw), &msg))
	return msg, nil
}
