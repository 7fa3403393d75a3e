// Package relay implements the signaling relay: it tracks connected
// endpoints, periodically pushes the peer set to each of them, and forwards
// opaque negotiation envelopes between a named source and target. It holds
// no state beyond the live connection set.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/rudransh-shrivastava/drop-it/internal/netinfo"
	"github.com/rudransh-shrivastava/drop-it/internal/protocol"
)

type Options struct {
	Addr string
	// PublicURL is reported by GET /network. Defaults to http://<addr>.
	PublicURL         string
	DiscoveryInterval time.Duration
	Logger            *logrus.Logger
}

type Server struct {
	opts     Options
	logger   *logrus.Logger
	listener net.Listener
	server   *http.Server
	upgrader websocket.Upgrader

	mu        sync.Mutex
	endpoints map[string]*endpoint
}

func NewServer(opts Options) (*Server, error) {
	if opts.DiscoveryInterval <= 0 {
		opts.DiscoveryInterval = protocol.DefaultDiscoveryInterval
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}

	listener, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", opts.Addr, err)
	}

	s := &Server{
		opts:     opts,
		logger:   log,
		listener: listener,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		endpoints: make(map[string]*endpoint),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/network", s.handleNetwork)
	s.server = &http.Server{Handler: mux}

	return s, nil
}

func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start serves until the context is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Infof("Relay server started on %s", s.Addr())

	go func() {
		<-ctx.Done()
		_ = s.Shutdown()
	}()

	err := s.server.Serve(s.listener)
	if err == http.ErrServerClosed || ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down relay server")

	s.mu.Lock()
	endpoints := make([]*endpoint, 0, len(s.endpoints))
	for _, ep := range s.endpoints {
		endpoints = append(endpoints, ep)
	}
	s.endpoints = make(map[string]*endpoint)
	s.mu.Unlock()

	for _, ep := range endpoints {
		ep.close()
	}
	return s.server.Close()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("Upgrade failed: %v", err)
		return
	}

	ep := newEndpoint(uuid.NewString(), conn)
	s.register(ep)
	s.logger.Infof("Endpoint connected: %s", ep.id)

	defer func() {
		s.unregister(ep)
		ep.close()
		s.logger.Infof("Endpoint disconnected: %s", ep.id)
	}()

	if err := ep.send(protocol.BuildIDEnvelope(ep.id)); err != nil {
		s.logger.Warnf("Failed to send id to %s: %v", ep.id, err)
		return
	}

	go s.discoveryLoop(ep)

	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		s.handleEnvelope(ep, env)
	}
}

func (s *Server) handleEnvelope(ep *endpoint, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventDiscover:
		if err := ep.send(protocol.BuildPeersEnvelope(s.peersFor(ep.id))); err != nil {
			s.logger.Debugf("Failed to send peers to %s: %v", ep.id, err)
		}

	case protocol.EventOffer:
		// Clients must not trust a self-declared sender; the relay
		// injects the true identity.
		env.Source = ep.id
		s.forward(env)

	case protocol.EventAnswer, protocol.EventCandidate:
		s.forward(env)

	default:
		s.logger.Debugf("Unknown event %q from %s", env.Event, ep.id)
	}
}

// forward delivers an envelope to its target. A missing target or a failed
// write is dropped silently; the relay never reports delivery failure back
// to the sender.
func (s *Server) forward(env protocol.Envelope) {
	s.mu.Lock()
	target, exists := s.endpoints[env.Target]
	s.mu.Unlock()

	if !exists {
		s.logger.Debugf("Dropping %s for unknown target %s", env.Event, env.Target)
		return
	}
	if err := target.send(env); err != nil {
		s.logger.Debugf("Dropping %s for %s: %v", env.Event, env.Target, err)
	}
}

// discoveryLoop pushes the current peer set to one endpoint every
// DiscoveryInterval until the endpoint goes away.
func (s *Server) discoveryLoop(ep *endpoint) {
	ticker := time.NewTicker(s.opts.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ep.done:
			return
		case <-ticker.C:
			if err := ep.send(protocol.BuildPeersEnvelope(s.peersFor(ep.id))); err != nil {
				return
			}
		}
	}
}

func (s *Server) peersFor(selfID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := make([]string, 0, len(s.endpoints))
	for id := range s.endpoints {
		if id == selfID {
			continue
		}
		peers = append(peers, id)
	}
	sort.Strings(peers)
	return peers
}

func (s *Server) register(ep *endpoint) {
	s.mu.Lock()
	s.endpoints[ep.id] = ep
	s.mu.Unlock()
}

func (s *Server) unregister(ep *endpoint) {
	s.mu.Lock()
	delete(s.endpoints, ep.id)
	s.mu.Unlock()
}

type networkResponse struct {
	LocalIP   *string `json:"localIp"`
	PublicURL string  `json:"publicUrl"`
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	resp := networkResponse{PublicURL: s.opts.PublicURL}
	if resp.PublicURL == "" {
		resp.PublicURL = "http://" + s.Addr()
	}
	// Best effort: an unresolvable local address yields null, not an error.
	if ip := netinfo.LocalIP(); ip != "" {
		resp.LocalIP = &ip
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Debugf("Failed to write network response: %v", err)
	}
}
