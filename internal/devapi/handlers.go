package devapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nexusmedic/medhub/pkg/domain"
)

type tokenReply struct {
	User         *domain.User `json:"user,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresAt    int64        `json:"expires_at"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil || req.Email == "" || req.Password == "" {
		s.metrics.logins.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}
	u, ok := s.data.authenticate(req.Email, req.Password)
	if !ok {
		s.metrics.logins.WithLabelValues("rejected").Inc()
		s.log.Info().Str("email", req.Email).Msg("login rejected")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	g, err := s.tokens.issue(u)
	if err != nil {
		s.log.Error().Err(err).Msg("issue tokens")
		writeError(w, http.StatusInternalServerError, "Could not issue tokens")
		return
	}
	s.metrics.logins.WithLabelValues("ok").Inc()
	s.log.Info().Str("user_id", u.ID).Msg("login")
	writeJSON(w, http.StatusOK, tokenReply{
		User:         &u,
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		ExpiresAt:    g.ExpiresAt.Unix(),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decode(r, &req); err != nil || req.RefreshToken == "" {
		s.metrics.refreshes.WithLabelValues("bad_request").Inc()
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}
	userID, err := s.tokens.redeem(req.RefreshToken)
	if err != nil {
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	u, ok := s.data.userByID(userID)
	if !ok {
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	g, err := s.tokens.issue(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue tokens")
		return
	}
	s.metrics.refreshes.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, tokenReply{
		AccessToken:  g.AccessToken,
		RefreshToken: g.RefreshToken,
		ExpiresAt:    g.ExpiresAt.Unix(),
	})
}

func (s *Server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.data.summary(s.now()))
}

func (s *Server) handlePatients(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.data.listPatients())
}

func (s *Server) handleDiagnoses(w http.ResponseWriter, r *http.Request) {
	dx, ok := s.data.diagnosesFor(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Patient not found")
		return
	}
	writeData(w, http.StatusOK, dx)
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.data.activitiesFor(mux.Vars(r)["id"]))
}

func (s *Server) handleListFolders(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.data.listFolders())
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFolderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := s.data.createFolder(req, s.now())
	if err != nil {
		writeValidation(w, err)
		return
	}
	writeData(w, http.StatusCreated, f)
}

func (s *Server) handleFolder(w http.ResponseWriter, r *http.Request) {
	d, ok := s.data.folderDetail(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Folder not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"folder":      d.Folder,
		"patient":     d.Patient,
		"notes":       d.Notes,
		"attachments": d.Attachments,
		"tests":       d.Tests,
	})
}

func (s *Server) handleListTests(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.data.listTests())
}

func (s *Server) handleCreateTest(w http.ResponseWriter, r *http.Request) {
	var in domain.TestInput
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, err := s.data.createTest(in, s.now())
	if err != nil {
		writeValidation(w, err)
		return
	}
	writeData(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTest(w http.ResponseWriter, r *http.Request) {
	var in domain.TestInput
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	t, ok := s.data.updateTest(mux.Vars(r)["id"], in)
	if !ok {
		writeError(w, http.StatusNotFound, "Test not found")
		return
	}
	writeData(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTest(w http.ResponseWriter, r *http.Request) {
	if !s.data.deleteTest(mux.Vars(r)["id"]) {
		writeError(w, http.StatusNotFound, "Test not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, ok := s.data.resultsFor(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Test not found")
		return
	}
	writeData(w, http.StatusOK, results)
}

func (s *Server) handleCreateResult(w http.ResponseWriter, r *http.Request) {
	var in domain.ResultInput
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := in.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.UploadedBy == "" {
		in.UploadedBy = userFrom(r.Context()).ID
	}
	res, ok := s.data.addResult(mux.Vars(r)["id"], in, s.now())
	if !ok {
		writeError(w, http.StatusNotFound, "Test not found")
		return
	}
	writeData(w, http.StatusCreated, res)
}

func (s *Server) handleReports(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, s.data.listReports())
}

func writeValidation(w http.ResponseWriter, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal error")
}
