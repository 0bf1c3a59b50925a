package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/shynome/rtcsession/report"
	"github.com/shynome/rtcsession/signaler"
)

type Server struct {
	hub *Hub

	mu     sync.RWMutex
	ch     chan signaler.Message
	closed bool
}

func NewServer() *Server {
	return &Server{}
}

var _ signaler.Channel = (*Server)(nil)

func (s *Server) Send(ctx context.Context, msg signaler.Message) error {
	if s.hub == nil {
		return fmt.Errorf("server need register to a local hub")
	}
	if msg.To == "" {
		s.hub.record(msg)
		return nil
	}
	remote := s.hub.Find(msg.To)
	if remote == nil {
		return fmt.Errorf("server is not found. ep: %s", msg.To)
	}
	return remote.deliver(ctx, msg)
}

func (s *Server) deliver(ctx context.Context, msg signaler.Message) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("server is closed")
	}
	if s.ch == nil {
		return fmt.Errorf("server is not ready accept")
	}
	select {
	case s.ch <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) Accept() (ch <-chan signaler.Message, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("server is closed")
	}
	if s.ch == nil {
		s.ch = make(chan signaler.Message, 64)
	}
	return s.ch, nil
}

func (s *Server) Close() (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if ch := s.ch; ch != nil {
		close(ch)
	}
	return
}

type Hub struct {
	pool  map[string]*Server
	poolL *sync.RWMutex

	reports  []*report.Report
	reportsL sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		pool:  make(map[string]*Server),
		poolL: &sync.RWMutex{},
	}
}

var _ signaler.Reports = (*Hub)(nil)

func (hub *Hub) Register(endpoint string, server *Server) {
	if endpoint == "" || server == nil {
		return
	}
	hub.poolL.Lock()
	defer hub.poolL.Unlock()
	server.hub = hub
	hub.pool[endpoint] = server
}

func (hub *Hub) Find(endpoint string) *Server {
	hub.poolL.RLock()
	defer hub.poolL.RUnlock()
	return hub.pool[endpoint]
}

func (hub *Hub) record(msg signaler.Message) {
	if msg.Type != signaler.TypeReport || msg.Report == nil {
		return
	}
	hub.reportsL.Lock()
	defer hub.reportsL.Unlock()
	hub.reports = append(hub.reports, msg.Report)
}

func (hub *Hub) Reports() []*report.Report {
	hub.reportsL.Lock()
	defer hub.reportsL.Unlock()
	return append([]*report.Report(nil), hub.reports...)
}
