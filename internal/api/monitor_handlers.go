package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/places"
)

// dashboard handles GET /v1/dashboard: the account, its preferences, and the
// most recent recorded earthquake.
func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}
	settings, err := s.settingsOrDefaults(r, user.ID)
	if err != nil {
		s.logger.Error("load settings failed", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	payload := map[string]any{
		"user":     user,
		"settings": settings,
	}
	if latest, err := s.events.Latest(r.Context()); err == nil {
		payload["latest_earthquake"] = toEventDTO(latest)
	}
	writeJSON(w, http.StatusOK, payload)
}

// getSettings handles GET /v1/settings.
func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}
	settings, err := s.settingsOrDefaults(r, user.ID)
	if err != nil {
		s.logger.Error("load settings failed", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

type settingsRequest struct {
	MagnitudeThreshold float64 `json:"magnitude_threshold"`
	LocationType       string  `json:"location_type"`
	AltProvince        string  `json:"alt_province"`
	AltCity            string  `json:"alt_city"`
	SafetyTips         bool    `json:"safety_tips"`
	RangeKm            float64 `json:"range_km"`
}

// updateSettings handles PUT /v1/settings, replacing the full preference set.
func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := validateSettings(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.settings.Update(r.Context(), monitor.Settings{
		UserID:             user.ID,
		MagnitudeThreshold: req.MagnitudeThreshold,
		LocationType:       req.LocationType,
		AltProvince:        req.AltProvince,
		AltCity:            req.AltCity,
		SafetyTips:         req.SafetyTips,
		RangeKm:            req.RangeKm,
	})
	if errors.Is(err, monitor.ErrNotFound) {
		writeError(w, http.StatusNotFound, "settings not found")
		return
	}
	if err != nil {
		s.logger.Error("update settings failed", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to update settings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": updated})
}

func validateSettings(req settingsRequest) error {
	if req.MagnitudeThreshold < 0 || req.MagnitudeThreshold > 10 {
		return errors.New("magnitude_threshold must be between 0 and 10")
	}
	if req.RangeKm <= 0 {
		return errors.New("range_km must be positive")
	}
	switch req.LocationType {
	case monitor.LocationNearMe:
	case monitor.LocationCustom:
		if _, ok := places.Lookup(req.AltProvince, req.AltCity); !ok {
			return errors.New("unknown alternate province or city")
		}
	default:
		return errors.New("location_type must be near_me or custom")
	}
	return nil
}

// latestEarthquake handles GET /v1/earthquakes/latest. It is public.
func (s *Server) latestEarthquake(w http.ResponseWriter, r *http.Request) {
	latest, err := s.events.Latest(r.Context())
	if errors.Is(err, monitor.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": "No earthquake data available",
		})
		return
	}
	if err != nil {
		s.logger.Error("load latest event failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load latest earthquake")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    toEventDTO(latest),
	})
}

type testNotificationRequest struct {
	Magnitude float64 `json:"magnitude"`
	Province  string  `json:"province"`
	City      string  `json:"city"`
}

// testNotification handles POST /v1/notifications/test. The body may carry a
// synthetic magnitude and epicenter to evaluate the caller against; without
// one the latest recorded earthquake is used, or a default synthetic quake
// when nothing has been recorded yet. On a match a real alert email is sent.
func (s *Server) testNotification(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing session")
		return
	}
	var req testNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	settings, err := s.settingsOrDefaults(r, user.ID)
	if err != nil {
		s.logger.Error("load settings failed", zap.Int64("user_id", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	event, synthetic, err := s.testEvent(r, user, settings, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result := monitor.EvaluateUser(user, settings, event.Magnitude, event.Lat, event.Lon)

	payload := map[string]any{
		"success":    true,
		"would_send": result.Send,
		"reason":     result.Reason,
		"synthetic":  synthetic,
		"test_earthquake": map[string]any{
			"magnitude": event.Magnitude,
			"location":  event.Location,
		},
	}
	if result.Send {
		payload["email_sent"] = s.notifier.Notify(r.Context(), user, settings, toBulletin(event))
	}
	writeJSON(w, http.StatusOK, payload)
}

// testEvent builds the earthquake to evaluate a test notification against.
// Request fields win; otherwise the latest recorded quake is used, and an
// empty store falls back to a synthetic strong quake centered on the user's
// monitored city.
func (s *Server) testEvent(r *http.Request, user monitor.User, settings monitor.Settings, req testNotificationRequest) (monitor.Event, bool, error) {
	if req.Magnitude == 0 && req.Province == "" && req.City == "" {
		if latest, err := s.events.Latest(r.Context()); err == nil {
			return latest, false, nil
		}
	}

	province, city := user.Province, user.City
	if settings.LocationType == monitor.LocationCustom {
		province, city = settings.AltProvince, settings.AltCity
	}
	if req.Province != "" || req.City != "" {
		province, city = req.Province, req.City
		if _, ok := places.Lookup(province, city); !ok {
			return monitor.Event{}, false, errors.New("unknown province or city")
		}
	}
	magnitude := req.Magnitude
	if magnitude == 0 {
		magnitude = 6.0
	}
	if magnitude < 0 || magnitude > 10 {
		return monitor.Event{}, false, errors.New("magnitude must be between 0 and 10")
	}

	event := monitor.Event{
		Magnitude:  magnitude,
		Location:   "Test earthquake near " + city + " (" + province + ")",
		DepthKm:    10,
		OccurredAt: s.clock.Now(),
	}
	if coords, ok := places.Lookup(province, city); ok {
		lat, lon := coords.Lat, coords.Lon
		event.Lat, event.Lon = &lat, &lon
	}
	return event, true, nil
}

// listProvinces handles GET /v1/locations/provinces.
func (s *Server) listProvinces(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"provinces": places.Provinces()})
}

// listCities handles GET /v1/locations/{province}/cities.
func (s *Server) listCities(w http.ResponseWriter, r *http.Request) {
	province := chi.URLParam(r, "province")
	cities := places.Cities(province)
	if len(cities) == 0 {
		writeError(w, http.StatusNotFound, "unknown province")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"province": province, "cities": cities})
}

// settingsOrDefaults loads the user's preferences, falling back to defaults
// when no row exists yet.
func (s *Server) settingsOrDefaults(r *http.Request, userID int64) (monitor.Settings, error) {
	settings, err := s.settings.GetByUserID(r.Context(), userID)
	if errors.Is(err, monitor.ErrNotFound) {
		return monitor.DefaultSettings(userID), nil
	}
	return settings, err
}

type eventDTO struct {
	ID         int64    `json:"id"`
	Magnitude  float64  `json:"magnitude"`
	Location   string   `json:"location"`
	Lat        *float64 `json:"lat,omitempty"`
	Lon        *float64 `json:"lon,omitempty"`
	DepthKm    float64  `json:"depth_km"`
	OccurredAt string   `json:"occurred_at"`
	RecordedAt string   `json:"recorded_at"`
}

func toEventDTO(e monitor.Event) eventDTO {
	return eventDTO{
		ID:         e.ID,
		Magnitude:  e.Magnitude,
		Location:   e.Location,
		Lat:        e.Lat,
		Lon:        e.Lon,
		DepthKm:    e.DepthKm,
		OccurredAt: e.OccurredAt.Format("02 January 2006 - 03:04 PM"),
		RecordedAt: e.RecordedAt.Format("02 January 2006 - 03:04 PM"),
	}
}

// toBulletin rebuilds bulletin-shaped text from a stored event so the
// notifier can compose an email for it.
func toBulletin(e monitor.Event) monitor.Bulletin {
	b := monitor.Bulletin{
		DateTime:  e.OccurredAt.Format("02 January 2006 - 03:04 PM"),
		Depth:     strconv.FormatFloat(e.DepthKm, 'f', -1, 64),
		Magnitude: strconv.FormatFloat(e.Magnitude, 'f', 1, 64),
		Location:  e.Location,
	}
	if e.Lat != nil && e.Lon != nil {
		b.Latitude = strconv.FormatFloat(*e.Lat, 'f', 2, 64)
		b.Longitude = strconv.FormatFloat(*e.Lon, 'f', 2, 64)
	}
	return b
}
