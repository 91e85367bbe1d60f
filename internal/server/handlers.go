package server

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/vscltools/faceitfinder/pkg/messaging"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// handleMessage answers one protocol message. Action failures are reported
// in the body with status 200; only undecodable messages get a 400.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		s.writeResponse(w, http.StatusRequestEntityTooLarge, messaging.Response{Error: err.Error()})
		return
	}

	req, err := messaging.Decode(body)
	if err != nil {
		s.writeResponse(w, http.StatusBadRequest, messaging.Response{Error: err.Error()})
		return
	}

	log := s.Log.WithField("request_id", middleware.GetReqID(r.Context()))
	log.Debugf("Message %s (%s)", req.Action, req.ID)

	res := s.Dispatcher.Handle(r.Context(), req)
	if !res.Success {
		log.Debugf("Message %s (%s) failed: %s", req.Action, req.ID, res.Error)
	}
	s.writeResponse(w, http.StatusOK, res)
}

func (s *Server) writeResponse(w http.ResponseWriter, status int, res messaging.Response) {
	out, err := messaging.Encode(res)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(out)
}
