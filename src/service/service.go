package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mosaicnetworks/dncp/src/common"
	"github.com/mosaicnetworks/dncp/src/node"
	"github.com/mosaicnetworks/dncp/src/proto"
	"github.com/mosaicnetworks/dncp/src/tlv"
	"github.com/sirupsen/logrus"
	"github.com/ugorji/go/codec"
)

// Service exposes the state of a node over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	mux         *http.ServeMux
	server      *http.Server
	events      *EventHub
	closed      bool
	logger      *logrus.Entry
}

// TLVRequest is the body of POST and DELETE requests on /tlvs. Value is hex,
// with or without the 0x prefix.
type TLVRequest struct {
	Type  uint16 `json:"type"`
	Value string `json:"value"`
}

// NewService returns a Service for n. The event stream is fed from n's
// subscriber bus as soon as the Service exists.
func NewService(bindAddress string, n *node.Node, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		node:        n,
		mux:         http.NewServeMux(),
		events:      NewEventHub(logger),
		logger:      logger,
	}

	if err := n.Subscribe(service.events.Subscriber()); err != nil {
		logger.WithError(err).Error("Subscribing event hub")
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the Service's own mux,
// which Handler returns for embedding in another server.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering DNCP API handlers")
	s.mux.HandleFunc("/stats", s.makeHandler(s.GetStats))
	s.mux.HandleFunc("/nodes", s.makeHandler(s.GetNodes))
	s.mux.HandleFunc("/nodes/", s.makeHandler(s.GetNode))
	s.mux.HandleFunc("/endpoints", s.makeHandler(s.GetEndpoints))
	s.mux.HandleFunc("/neighbors", s.makeHandler(s.GetNeighbors))
	s.mux.HandleFunc("/tlvs", s.makeHandler(s.HandleTLVs))
	// the websocket outlives the request, so it does not take the lock
	s.mux.HandleFunc("/events", s.events.ServeHTTP)
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Handler returns the mux the API is served from.
func (s *Service) Handler() http.Handler {
	return s.mux
}

// Serve calls ListenAndServe. This is a blocking call that returns once
// Close was called.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving DNCP API")

	s.Lock()
	if s.closed {
		s.Unlock()
		return
	}
	s.server = &http.Server{Addr: s.bindAddress, Handler: s.mux}
	server := s.server
	s.Unlock()

	err := server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error(err)
	}
}

// Close stops the server and disconnects the event stream clients.
func (s *Service) Close() {
	s.Lock()
	s.closed = true
	server := s.server
	s.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
	s.events.Close()
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.node.GetStats())
}

// GetNodes ...
func (s *Service) GetNodes(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.node.GetNodes())
}

// GetNode returns one node, with its TLVs. The identifier is the last path
// element, in hex.
func (s *Service) GetNode(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}

	param := strings.TrimPrefix(r.URL.Path, "/nodes/")

	id, err := common.DecodeFromString(param)
	if err != nil || len(id) == 0 {
		s.logger.WithError(err).Debugf("Parsing node id %s", param)
		http.Error(w, "invalid node id: "+param, http.StatusBadRequest)
		return
	}

	info, err := s.node.GetNode(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

// GetEndpoints ...
func (s *Service) GetEndpoints(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.node.GetEndpoints())
}

// GetNeighbors ...
func (s *Service) GetNeighbors(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.node.GetNeighbors())
}

// HandleTLVs lists (GET), publishes (POST) and withdraws (DELETE) the own
// node's TLVs.
func (s *Service) HandleTLVs(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPost, http.MethodDelete) {
		return
	}

	if r.Method == http.MethodGet {
		s.writeJSON(w, http.StatusOK, s.node.GetLocalTLVs())
		return
	}

	a, err := s.readTLV(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodPost {
		err = s.node.AddTLV(a)
	} else {
		err = s.node.RemoveTLV(a)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"method": r.Method,
		"tlv":    a.String(),
	}).Debug("Local TLVs changed")

	s.writeJSON(w, http.StatusOK, node.NewTLVInfo(a))
}

// readTLV decodes a TLVRequest. Types below TRUST-VERDICT are owned by the
// protocol and cannot be published from outside.
func (s *Service) readTLV(r *http.Request) (tlv.Attr, error) {
	var req TLVRequest
	jh := new(codec.JsonHandle)
	if err := codec.NewDecoder(r.Body, jh).Decode(&req); err != nil {
		return tlv.Attr{}, err
	}

	if req.Type < proto.TypeTrustVerdict {
		return tlv.Attr{}, fmt.Errorf("type %d (%s) is reserved", req.Type, proto.TypeString(req.Type))
	}

	var value []byte
	if req.Value != "" {
		var err error
		value, err = common.DecodeFromString(req.Value)
		if err != nil {
			return tlv.Attr{}, err
		}
	}
	if len(value) > tlv.MaxValueLen {
		return tlv.Attr{}, common.NewDncpErr("TLV", common.TooLarge, proto.TypeString(req.Type))
	}

	return tlv.New(req.Type, value), nil
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	switch {
	case err == node.ErrShutdown:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case common.Is(err, common.KeyNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		s.logger.WithError(err).Error("Handling request")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	jh := new(codec.JsonHandle)
	jh.Canonical = true
	if err := codec.NewEncoder(w, jh).Encode(v); err != nil {
		s.logger.WithError(err).Error("Encoding response")
	}
}

func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}
