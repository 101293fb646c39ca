package api

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fmuoria/recruitment-scoring/internal/export"
	"github.com/fmuoria/recruitment-scoring/internal/form"
	"github.com/fmuoria/recruitment-scoring/internal/models"
	"github.com/fmuoria/recruitment-scoring/internal/section"
)

type openRequest struct {
	AdvertisementID int64             `json:"advertisement_id" binding:"required"`
	HeadingID       int64             `json:"heading_id" binding:"required"`
	RegistrationNo  string            `json:"registration_no" binding:"required"`
	ApplicationID   int64             `json:"application_id"`
	Mode            string            `json:"mode" binding:"omitempty,oneof=candidate screener"`
	Selection       string            `json:"selection" binding:"omitempty,oneof=fixed variable repeatable"`
	Filters         map[string]string `json:"filters"`
}

type valueRequest struct {
	SubheadingID int64  `json:"subheading_id" binding:"required"`
	RowIndex     int    `json:"row_index" binding:"gte=0"`
	ParameterID  int64  `json:"parameter_id" binding:"required"`
	Value        string `json:"value"`
}

type rowsRequest struct {
	SubheadingID int64 `json:"subheading_id" binding:"required"`
	Count        int   `json:"count"`
}

type selectionRequest struct {
	SubheadingID int64 `json:"subheading_id" binding:"required"`
	Selected     bool  `json:"selected"`
}

type statusRequest struct {
	SubheadingID int64 `json:"subheading_id" binding:"required"`
	RowIndex     int   `json:"row_index" binding:"gte=0"`
	StatusID     int   `json:"status_id" binding:"gte=0"`
}

type sectionResponse struct {
	SessionID string    `json:"session_id"`
	View      form.View `json:"view"`
}

func parseMode(s string) form.Mode {
	if s == "screener" {
		return form.ModeScreener
	}
	return form.ModeCandidate
}

func parseSelection(s string) form.Selection {
	switch s {
	case "variable":
		return form.SelectionVariable
	case "repeatable":
		return form.SelectionRepeatable
	default:
		return form.SelectionFixed
	}
}

// POST /sections
func (s *Server) handleOpen(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	sess, err := s.sections.Open(c.Request.Context(), section.OpenRequest{
		AdvertisementID: req.AdvertisementID,
		HeadingID:       req.HeadingID,
		Owner:           models.Owner{RegistrationNo: req.RegistrationNo, ApplicationID: req.ApplicationID},
		Mode:            parseMode(req.Mode),
		Selection:       parseSelection(req.Selection),
		Filters:         req.Filters,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	view, err := sess.View()
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sectionResponse{SessionID: sess.ID, View: view})
}

// session resolves the :id path parameter, responding on failure
func (s *Server) session(c *gin.Context) (*section.Session, bool) {
	sess, err := s.sections.Get(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return nil, false
	}
	return sess, true
}

// respondView sends the session's current view, or the edit error with the
// view attached so clients can show the stored value next to the message.
func (s *Server) respondView(c *gin.Context, sess *section.Session, editErr error) {
	view, err := sess.View()
	if err != nil {
		s.respondError(c, err)
		return
	}
	if editErr != nil {
		status, body := apiError(editErr)
		c.AbortWithStatusJSON(status, gin.H{"error": body, "view": view})
		return
	}
	c.JSON(http.StatusOK, sectionResponse{SessionID: sess.ID, View: view})
}

// GET /sections/:id
func (s *Server) handleView(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.respondView(c, sess, nil)
}

// DELETE /sections/:id
func (s *Server) handleClose(c *gin.Context) {
	if err := s.sections.Close(c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// PUT /sections/:id/values
func (s *Server) handleSetValue(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req valueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	key := models.ValueKey{
		RecordKey:   models.RecordKey{SubheadingID: req.SubheadingID, RowIndex: req.RowIndex},
		ParameterID: req.ParameterID,
	}
	s.respondView(c, sess, sess.SetValue(key, req.Value))
}

// PUT /sections/:id/rows
func (s *Server) handleSetRows(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req rowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	s.respondView(c, sess, sess.SetRepeatCount(req.SubheadingID, req.Count))
}

// PUT /sections/:id/selection
func (s *Server) handleSelect(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req selectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	s.respondView(c, sess, sess.Select(req.SubheadingID, req.Selected))
}

// PUT /sections/:id/status
func (s *Server) handleSetStatus(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	key := models.RecordKey{SubheadingID: req.SubheadingID, RowIndex: req.RowIndex}
	s.respondView(c, sess, sess.SetStatus(key, req.StatusID))
}

// POST /sections/:id/files
// multipart fields subheading_id, row_index, parameter_id and file
func (s *Server) handleAttachFile(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	key, err := valueKeyFrom(c.PostForm)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		s.badRequest(c, fmt.Errorf("file is required: %w", err))
		return
	}
	src, err := header.Open()
	if err != nil {
		s.badRequest(c, fmt.Errorf("failed to open uploaded file: %w", err))
		return
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		s.badRequest(c, fmt.Errorf("failed to read uploaded file: %w", err))
		return
	}

	file := models.FileHandle{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	s.respondView(c, sess, sess.AttachFile(key, file))
}

// DELETE /sections/:id/files?subheading_id=&row_index=&parameter_id=
func (s *Server) handleClearFile(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	key, err := valueKeyFrom(c.Query)
	if err != nil {
		s.badRequest(c, err)
		return
	}
	s.respondView(c, sess, sess.ClearFile(key))
}

// POST /sections/:id/submit
func (s *Server) handleSubmit(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	out, err := sess.Submit(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// POST /sections/:id/reload
func (s *Server) handleReload(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	applied, err := sess.Reload(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	if !applied {
		c.JSON(http.StatusConflict, ErrorEnvelope{Error: APIError{Message: "section changed while reloading", Code: "stale"}})
		return
	}
	s.respondView(c, sess, nil)
}

// GET /sections/:id/export
func (s *Server) handleExport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	view, err := sess.View()
	if err != nil {
		s.respondError(c, err)
		return
	}

	name := fmt.Sprintf("scores_%s_%d_%s", view.Owner.RegistrationNo, view.HeadingID, sess.ID)
	if err := os.MkdirAll(s.exportDir, 0755); err != nil {
		s.log.Error("Failed to create export directory", "dir", s.exportDir, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorEnvelope{Error: APIError{Message: err.Error(), Code: "export_failed"}})
		return
	}
	path, err := export.ExportScoreSheet(view, filepath.Join(s.exportDir, name))
	if err != nil {
		s.log.Error("Failed to export score sheet", "session_id", sess.ID, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorEnvelope{Error: APIError{Message: err.Error(), Code: "export_failed"}})
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}

// valueKeyFrom reads a value key from form or query fields
func valueKeyFrom(get func(string) string) (models.ValueKey, error) {
	var key models.ValueKey
	fields := []struct {
		name string
		dst  *int64
	}{
		{"subheading_id", &key.SubheadingID},
		{"parameter_id", &key.ParameterID},
	}
	for _, f := range fields {
		v, err := strconv.ParseInt(get(f.name), 10, 64)
		if err != nil {
			return models.ValueKey{}, fmt.Errorf("%s must be an integer", f.name)
		}
		*f.dst = v
	}
	row := get("row_index")
	if row == "" {
		return key, nil
	}
	n, err := strconv.Atoi(row)
	if err != nil || n < 0 {
		return models.ValueKey{}, fmt.Errorf("row_index must be a non-negative integer")
	}
	key.RowIndex = n
	return key, nil
}
