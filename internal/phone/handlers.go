package phone

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JuweiLin/ARProject/internal/devicehub"
	"github.com/JuweiLin/ARProject/internal/natsserver"
	"github.com/JuweiLin/ARProject/pkg/protocol"
)

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, protocol.DevicesResponse{Devices: s.hub.Snapshot()})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeResponse(w, http.StatusInternalServerError, protocol.StatusError, err.Error())
		return
	}
	if body == nil {
		writeResponse(w, http.StatusInternalServerError, protocol.StatusError, "request body is not a JSON object")
		return
	}
	device, okDevice := fieldText(body["device"])
	command, okCommand := fieldText(body["command"])
	if !okDevice || !okCommand {
		writeResponse(w, http.StatusBadRequest, protocol.StatusError, "Missing 'device' or 'command'.")
		return
	}

	msg, err := s.hub.SendCommand(device, command)
	if err != nil {
		writeResponse(w, http.StatusBadRequest, protocol.StatusError, msg)
		return
	}
	writeResponse(w, http.StatusOK, protocol.StatusSuccess, msg)
}

func (s *Server) handleSetOnline(w http.ResponseWriter, r *http.Request) {
	var req protocol.DeviceNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, http.StatusInternalServerError, protocol.StatusError, err.Error())
		return
	}
	if req.DeviceName == "" {
		writeResponse(w, http.StatusBadRequest, protocol.StatusError, "Missing 'device_name'.")
		return
	}

	if err := s.hub.SetOnline(req.DeviceName); err != nil {
		if errors.Is(err, devicehub.ErrDeviceNotFound) {
			writeResponse(w, http.StatusNotFound, protocol.StatusError, fmt.Sprintf("Device '%s' not found.", req.DeviceName))
			return
		}
		writeResponse(w, http.StatusInternalServerError, protocol.StatusError, err.Error())
		return
	}
	writeResponse(w, http.StatusOK, protocol.StatusSuccess, fmt.Sprintf("Device '%s' is now online.", req.DeviceName))
}

func (s *Server) handleAddDetector(w http.ResponseWriter, r *http.Request) {
	s.publish(protocol.EventDeviceDetector, map[string]any{"value": "User clicked add device"})
	writeResponse(w, http.StatusOK, protocol.StatusSuccess, "Task 2 (Add Device) completed.")
}

func (s *Server) handleEnterDevice(w http.ResponseWriter, r *http.Request) {
	var req protocol.DeviceNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, http.StatusInternalServerError, protocol.StatusError, err.Error())
		return
	}
	if req.DeviceName == "" {
		writeResponse(w, http.StatusBadRequest, protocol.StatusError, "Missing 'device_name'.")
		return
	}

	s.publish(protocol.EventDeviceEntered, map[string]any{"device": req.DeviceName})
	writeResponse(w, http.StatusOK, protocol.StatusSuccess, fmt.Sprintf("User entered device '%s'.", req.DeviceName))
}

func (s *Server) publish(eventType string, payload map[string]any) {
	if s.nc == nil {
		return
	}
	ev := protocol.NewEvent(eventType, protocol.SourcePhone, payload)
	if err := natsserver.PublishEvent(s.nc, ev); err != nil {
		s.logger.Error().Err(err).Str("type", eventType).Msg("failed to publish event")
	}
}

func writeResponse(w http.ResponseWriter, code int, status, message string) {
	writeJSON(w, code, protocol.Response{Status: status, Message: message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// fieldText renders a loosely typed request field as text. Empty values
// (null, "", 0, false, empty containers) report false.
func fieldText(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), t != 0
	case bool:
		if t {
			return "True", true
		}
		return "False", false
	case []any:
		text, _ := json.Marshal(t)
		return string(text), len(t) > 0
	case map[string]any:
		text, _ := json.Marshal(t)
		return string(text), len(t) > 0
	default:
		return fmt.Sprint(t), true
	}
}
