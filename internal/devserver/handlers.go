package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kjstillabower/weather-zones/internal/models"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "validation_error", "Username, email and a password of at least 8 characters are required")
		return
	}

	user, token, err := s.store.register(req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusConflict, "user_exists", "Username or email is already taken")
		return
	}
	writeJSON(w, http.StatusCreated, models.AuthResponse{User: user, AccessToken: token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}

	user, token, err := s.store.login(strings.TrimSpace(req.Login), req.Password)
	if err != nil {
		// 401 without a bearer on the request; the client must not treat
		// this as a session expiry.
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		return
	}
	writeJSON(w, http.StatusOK, models.AuthResponse{User: user, AccessToken: token})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.store.revoke(bearerToken(r))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, requestUser(r))
}

func (s *Server) handleListZones(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	if limit < 0 || offset < 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "limit and offset must be non-negative")
		return
	}
	writeJSON(w, http.StatusOK, s.store.listZones(requestUser(r).ID, limit, offset))
}

func (s *Server) handleCreateZone(w http.ResponseWriter, r *http.Request) {
	var req models.CreateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	zone := s.store.createZone(requestUser(r).ID, req)
	writeJSON(w, http.StatusCreated, zone)
}

func (s *Server) handleUpdateZone(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "Request body is not valid JSON")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	zone, err := s.store.updateZone(requestUser(r).ID, pathID(r), req)
	if err != nil {
		writeZoneError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

func (s *Server) handleDeleteZone(w http.ResponseWriter, r *http.Request) {
	if err := s.store.deleteZone(requestUser(r).ID, pathID(r)); err != nil {
		writeZoneError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Zone deleted"})
}

func (s *Server) handleRefreshZone(w http.ResponseWriter, r *http.Request) {
	zone, err := s.store.refreshZone(requestUser(r).ID, pathID(r))
	if err != nil {
		writeZoneError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, zone)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, searchCities(r.URL.Query().Get("q"), SearchResultLimit))
}

func writeZoneError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "Zone not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "Something went wrong")
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
