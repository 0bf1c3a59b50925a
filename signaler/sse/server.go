// Package sse carries signaling messages over server sent events. Every
// endpoint subscribes to its own event channel and posts messages for other
// endpoints to the server, which publishes them to the recipient's channel.
package sse

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/donovanhide/eventsource"
	"github.com/google/uuid"
	"github.com/shynome/rtcsession/report"
	"github.com/shynome/rtcsession/signaler"
	"github.com/sirupsen/logrus"
)

// TopicParam names the query parameter holding the endpoint id.
const TopicParam = "t"

// maxMessage bounds a posted message.
const maxMessage = 1 << 20

type event struct {
	id   string
	typ  string
	data string
}

func (e event) Id() string    { return e.id }
func (e event) Event() string { return e.typ }
func (e event) Data() string  { return e.data }

type Server struct {
	srv *eventsource.Server
	log *logrus.Entry
	// Auth checks the basic auth credentials of every request when set.
	Auth func(user, pass string) bool

	reports  []*report.Report
	reportsL sync.Mutex
}

var (
	_ http.Handler     = (*Server)(nil)
	_ signaler.Reports = (*Server)(nil)
)

func NewServer(log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	srv := eventsource.NewServer()
	srv.AllowCORS = true
	return &Server{
		srv: srv,
		log: log.WithField("prefix", "sse"),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.Auth != nil {
		user, pass, _ := r.BasicAuth()
		if !s.Auth(user, pass) {
			w.Header().Set("WWW-Authenticate", `Basic realm="rtcsession"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}
	topic := r.URL.Query().Get(TopicParam)
	switch r.Method {
	case http.MethodGet:
		if topic == "" {
			http.Error(w, "missing topic", http.StatusBadRequest)
			return
		}
		s.log.WithField("topic", topic).Debug("Endpoint subscribed")
		s.srv.Handler(topic)(w, r)
	case http.MethodPost:
		s.publish(w, r, topic)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request, topic string) {
	var msg signaler.Message
	body := http.MaxBytesReader(w, r.Body, maxMessage)
	if err := json.NewDecoder(body).Decode(&msg); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if topic == "" {
		s.record(msg)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.srv.Publish([]string{topic}, event{
		id:   uuid.NewString(),
		typ:  string(msg.Type),
		data: string(data),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) record(msg signaler.Message) {
	if msg.Type != signaler.TypeReport || msg.Report == nil {
		s.log.WithField("type", msg.Type).Debug("Dropping message without recipient")
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

// Close ends every subscription.
func (s *Server) Close() {
	s.srv.Close()
}
