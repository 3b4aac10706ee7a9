package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jdsantos/quakewatch/internal/monitor"
	"github.com/jdsantos/quakewatch/internal/places"
)

const minPasswordLength = 8

type registerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Province string `json:"province"`
	City     string `json:"city"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// register handles POST /v1/auth/register. A new account starts active, with
// default notification preferences.
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRegistration(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("hash password failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user, err := s.users.Create(r.Context(), monitor.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: string(hash),
		Province:     req.Province,
		City:         req.City,
		Active:       true,
	})
	if errors.Is(err, monitor.ErrDuplicateEmail) {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		s.logger.Error("create user failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	if _, err := s.settings.Create(r.Context(), monitor.DefaultSettings(user.ID)); err != nil {
		s.logger.Error("create default settings failed",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	s.logger.Info("user registered", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func validateRegistration(req registerRequest) error {
	if req.FullName == "" {
		return errors.New("full_name is required")
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return errors.New("a valid email is required")
	}
	if len(req.Password) < minPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	if _, ok := places.Lookup(req.Province, req.City); !ok {
		return errors.New("unknown province or city")
	}
	return nil
}

// login handles POST /v1/auth/login and returns a bearer token.
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil {
		// Same response as a bad password so the endpoint does not leak
		// which emails are registered.
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !user.Active {
		writeError(w, http.StatusForbidden, "account is deactivated")
		return
	}

	token, err := s.idGen.NewID()
	if err != nil {
		s.logger.Error("generate session token failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	s.sessions.Save(r.Context(), token, user.ID)

	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": user})
}
