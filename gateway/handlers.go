package gateway

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/smilesmith9879/new-car/camera"
	"github.com/smilesmith9879/new-car/command"
	"github.com/smilesmith9879/new-car/errors"
	"github.com/smilesmith9879/new-car/mapping"
	"github.com/smilesmith9879/new-car/motion"
)

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/status", s.wrap(http.MethodGet, s.handleStatus))
	mux.HandleFunc("/api/movement", s.wrap(http.MethodPost, s.handleMovement))
	mux.HandleFunc("/api/camera", s.wrap(http.MethodPost, s.handleCamera))
	mux.HandleFunc("/api/map", s.handleMap)
	mux.HandleFunc("/api/map/available", s.wrap(http.MethodGet, s.handleMapAvailable))
	mux.HandleFunc("/api/map/location", s.wrap(http.MethodPost, s.handleMapLocation))
	mux.HandleFunc("/api/navigation", s.wrap(http.MethodPost, s.handleNavigation))
	mux.HandleFunc("/api/battery", s.wrap(http.MethodGet, s.handleBattery))
	mux.HandleFunc("/api/command", s.wrap(http.MethodPost, s.handleCommand))
	mux.HandleFunc("/ws", s.hub.handleWebSocket)
}

// wrap applies method filtering, CORS, and request metrics to a handler.
func (s *Server) wrap(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.EnableCORS {
			s.applyCORS(w, r)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		if r.Method != method {
			s.writeError(w, r, http.StatusMethodNotAllowed,
				fmt.Sprintf("method %s not allowed", r.Method))
			return
		}
		h(w, r)
	}
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			return
		}
	}
}

// decodeBody reads up to the configured size limit and unmarshals JSON.
func (s *Server) decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxRequestSize+1))
	if err != nil {
		return errors.WrapIOFailure(err, "gateway", "decodeBody", "read request body")
	}
	if int64(len(body)) > s.cfg.MaxRequestSize {
		return errors.WrapInvalidArgument(
			fmt.Errorf("request body exceeds %d bytes", s.cfg.MaxRequestSize),
			"gateway", "decodeBody", "size check")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.WrapInvalidArgument(err, "gateway", "decodeBody", "parse JSON body")
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.errorCount.Add(1)
	}
	s.metrics.request(r.URL.Path, strconv.Itoa(status))
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	s.writeJSON(w, r, status, map[string]any{
		"error":  message,
		"status": status,
	})
}

// writeOperationError translates an error kind into an HTTP status.
func (s *Server) writeOperationError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorCount.Add(1)
	s.writeError(w, r, statusFromError(err), err.Error())
}

func statusFromError(err error) int {
	switch {
	case errors.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsInvalidState(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// statusResponse is the GET /api/status payload.
type statusResponse struct {
	Mode      string         `json:"mode"`
	Pose      any            `json:"pose"`
	Motion    motion.Command `json:"motion"`
	Streaming bool           `json:"streaming"`
	GimbalPan float64        `json:"gimbal_pan"`
	GimbalTlt float64        `json:"gimbal_tilt"`
	Battery   any            `json:"battery,omitempty"`
	Clients   int            `json:"ws_clients"`
	Uptime    string         `json:"uptime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	pan, tilt := s.camera.GimbalAngles()

	resp := statusResponse{
		Mode:      s.coordinator.Mode().String(),
		Pose:      s.pose.Position(),
		Motion:    s.governor.LastCommand(),
		Streaming: s.camera.Streaming(),
		GimbalPan: pan,
		GimbalTlt: tilt,
		Clients:   s.hub.ClientCount(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}
	if reading, err := s.battery.Current(); err == nil {
		resp.Battery = reading
	}

	s.writeJSON(w, r, http.StatusOK, resp)
}

type movementRequest struct {
	Direction string `json:"direction"`
	// A pointer distinguishes an omitted speed from an explicit zero.
	// Provided values pass through untouched; the governor rejects any
	// out-of-range value rather than clamping it.
	Speed *int `json:"speed"`
}

func (s *Server) handleMovement(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}

	speed := 0
	if req.Speed != nil {
		speed = *req.Speed
	}

	if err := s.governor.Move(motion.Direction(req.Direction), speed); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
}

type cameraRequest struct {
	Action string  `json:"action"` // "start", "stop", "gimbal", "center"
	Axis   string  `json:"axis,omitempty"`
	Angle  float64 `json:"angle,omitempty"`
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	var req cameraRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}

	var err error
	switch req.Action {
	case "start":
		err = s.camera.StartStreaming()
	case "stop":
		err = s.camera.StopStreaming()
	case "gimbal":
		err = s.camera.SetGimbalAngle(camera.Axis(req.Axis), req.Angle)
	case "center":
		err = s.camera.Center()
	default:
		err = errors.WrapInvalidArgument(
			fmt.Errorf("unknown camera action %q", req.Action),
			"gateway", "handleCamera", "action lookup")
	}
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
}

type mapRequest struct {
	Action string `json:"action"` // "start", "stop", "save", "load", "delete"
	Name   string `json:"name,omitempty"`
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if s.cfg.EnableCORS {
		s.applyCORS(w, r)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, r, http.StatusOK, s.coordinator.MapData())
	case http.MethodPost:
		var req mapRequest
		if err := s.decodeBody(r, &req); err != nil {
			s.writeOperationError(w, r, err)
			return
		}

		var err error
		switch req.Action {
		case "start":
			err = s.coordinator.StartMapping()
		case "stop":
			err = s.coordinator.StopMapping()
		case "save":
			err = s.coordinator.SaveMap(r.Context(), req.Name)
		case "load":
			err = s.coordinator.LoadMap(r.Context(), req.Name)
		case "delete":
			err = s.coordinator.DeleteMap(r.Context(), req.Name)
		default:
			err = errors.WrapInvalidArgument(
				fmt.Errorf("unknown map action %q", req.Action),
				"gateway", "handleMap", "action lookup")
		}
		if err != nil {
			s.writeOperationError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
	default:
		s.writeError(w, r, http.StatusMethodNotAllowed,
			fmt.Sprintf("method %s not allowed", r.Method))
	}
}

func (s *Server) handleMapAvailable(w http.ResponseWriter, r *http.Request) {
	names, err := s.coordinator.AvailableMaps(r.Context())
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"maps": names})
}

type locationRequest struct {
	Name string   `json:"name"`
	X    *float64 `json:"x,omitempty"`
	Y    *float64 `json:"y,omitempty"`
}

func (s *Server) handleMapLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}

	var position *mapping.Location
	if req.X != nil && req.Y != nil {
		position = &mapping.Location{X: *req.X, Y: *req.Y}
	}
	if err := s.coordinator.NameLocation(req.Name, position); err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
}

type navigationRequest struct {
	Action      string `json:"action"` // "start", "stop"
	Destination string `json:"destination,omitempty"`
}

func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	var req navigationRequest
	if err := s.decodeBody(r, &req); err != nil {
		s.writeOperationError(w, r, err)
		return
	}

	var err error
	switch req.Action {
	case "start":
		err = s.coordinator.StartNavigation(req.Destination)
	case "stop":
		err = s.coordinator.StopNavigation()
	default:
		err = errors.WrapInvalidArgument(
			fmt.Errorf("unknown navigation action %q", req.Action),
			"gateway", "handleNavigation", "action lookup")
	}
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleBattery(w http.ResponseWriter, r *http.Request) {
	reading, err := s.battery.Current()
	if err != nil {
		s.writeOperationError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"current": reading,
		"history": s.battery.Recent(),
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var cmd command.Command
	if err := s.decodeBody(r, &cmd); err != nil {
		s.writeOperationError(w, r, err)
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), cmd)
	if err != nil {
		s.errorCount.Add(1)
		s.writeJSON(w, r, statusFromError(err), result)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}
