package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/jonathan/portfolio-core/internal/pdf"
	"github.com/jonathan/portfolio-core/internal/portfolio"
	"github.com/jonathan/portfolio-core/internal/rendering"
	"github.com/jonathan/portfolio-core/internal/store"
)

// exportFileName is the download name of GET /portfolio/export.
const exportFileName = "portfolio-data.json"

// PortfolioResponse is the body of GET /portfolio.
type PortfolioResponse struct {
	Loading     bool               `json:"loading"`
	Tier        string             `json:"tier,omitempty"`
	LastUpdated int64              `json:"lastUpdated"`
	Data        portfolio.Document `json:"data"`
}

// MutationResponse acknowledges an editor write.
type MutationResponse struct {
	LastUpdated int64            `json:"lastUpdated"`
	Entity      portfolio.Entity `json:"entity,omitempty"`
	Warning     string           `json:"warning,omitempty"`
}

// ReorderRequest moves one element of a reorderable collection.
type ReorderRequest struct {
	From *int `json:"from" validate:"required,min=0"`
	To   *int `json:"to" validate:"required,min=0"`
}

// PictureRequest sets or clears the profile picture reference.
type PictureRequest struct {
	ProfilePicture *string `json:"profilePicture"`
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, _ *http.Request) {
	resp := PortfolioResponse{
		Loading:     s.store.IsLoading(),
		Tier:        s.store.Tier(),
		LastUpdated: s.store.LastUpdated(),
		Data:        s.store.Document(),
	}
	if resp.Data == nil {
		resp.Data = portfolio.Document{}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleGetSection reads one section. Known collections and records read as
// empty when absent; other names must be present.
func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("section")
	if s.store.IsLoading() {
		s.storeError(w, store.ErrNotLoaded)
		return
	}

	switch {
	case portfolio.IsCollection(name):
		s.jsonResponse(w, http.StatusOK, s.store.Collection(name))
	case name == portfolio.SectionProfilePicture:
		s.jsonResponse(w, http.StatusOK, PictureRequest{ProfilePicture: s.store.ProfilePicture()})
	case isRecordSection(name):
		s.jsonResponse(w, http.StatusOK, s.store.Record(name))
	default:
		v, ok := s.store.Section(name)
		if !ok {
			s.errorResponse(w, http.StatusNotFound, fmt.Sprintf("section not found: %s", name))
			return
		}
		s.jsonResponse(w, http.StatusOK, v)
	}
}

func isRecordSection(name string) bool {
	for _, r := range portfolio.RecordSections {
		if r == name {
			return true
		}
	}
	return false
}

func (s *Server) handleReplaceSection(w http.ResponseWriter, r *http.Request) {
	value, err := decodeValue(w, r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.store.ReplaceSection(r.PathValue("section"), value); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{LastUpdated: s.store.LastUpdated()})
}

func (s *Server) handleAddEntity(w http.ResponseWriter, r *http.Request) {
	item, err := decodeObject(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	entity, err := s.store.AddEntity(r.PathValue("section"), item)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, MutationResponse{LastUpdated: s.store.LastUpdated(), Entity: entity})
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	item, err := decodeObject(w, r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	entity, err := s.store.UpdateEntity(r.PathValue("section"), r.PathValue("id"), item)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{LastUpdated: s.store.LastUpdated(), Entity: entity})
}

func (s *Server) handleRemoveEntity(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveEntity(r.PathValue("section"), r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{LastUpdated: s.store.LastUpdated()})
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}
	if err := s.store.ReorderEntities(r.PathValue("section"), *req.From, *req.To); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{LastUpdated: s.store.LastUpdated()})
}

func (s *Server) handleUpdateFloatingCards(w http.ResponseWriter, r *http.Request) {
	value, err := decodeValue(w, r)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	items, ok := value.([]any)
	if !ok {
		err := &ErrValidation{Field: portfolio.SectionFloatingCards, Message: "must be an array"}
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	cards := make([]portfolio.Entity, 0, len(items))
	for i, it := range items {
		card, err := portfolio.EntityFrom(it)
		if err != nil {
			err := &ErrValidation{Field: fmt.Sprintf("%s[%d]", portfolio.SectionFloatingCards, i), Message: err.Error()}
			s.errorResponse(w, HTTPStatus(err), err.Error())
			return
		}
		cards = append(cards, card)
	}
	if err := s.store.UpdateFloatingCards(cards); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{LastUpdated: s.store.LastUpdated()})
}

func (s *Server) handleUpdatePicture(w http.ResponseWriter, r *http.Request) {
	var req PictureRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.store.UpdatePictureReference(req.ProfilePicture); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{LastUpdated: s.store.LastUpdated()})
}

func (s *Server) handleExport(w http.ResponseWriter, _ *http.Request) {
	data, err := s.store.ExportSnapshot()
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing export: %v", err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ImportSnapshot(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, MutationResponse{LastUpdated: s.store.LastUpdated()})
}

// handleReset restores the default document. A failure to clear durable
// storage is reported as a warning; the in-memory reset stands.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	resp := MutationResponse{}
	if err := s.store.ResetToDefault(r.Context()); err != nil {
		var persistErr *store.PersistError
		if !errors.As(err, &persistErr) {
			s.storeError(w, err)
			return
		}
		resp.Warning = persistErr.Error()
	}
	resp.LastUpdated = s.store.LastUpdated()
	s.jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleResumeHTML(w http.ResponseWriter, _ *http.Request) {
	if s.store.IsLoading() {
		s.storeError(w, store.ErrNotLoaded)
		return
	}
	opts := s.page
	opts.ShowDownload = true
	html, err := rendering.RenderHTML(s.store.Document(), opts)
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, html); err != nil {
		log.Printf("Error writing resume page: %v", err)
	}
}

func (s *Server) handleResumePDF(w http.ResponseWriter, r *http.Request) {
	if s.renderer == nil {
		s.storeError(w, &ErrUnavailable{What: "PDF export"})
		return
	}
	if s.store.IsLoading() {
		s.storeError(w, store.ErrNotLoaded)
		return
	}

	doc := s.store.Document()
	out, err := s.renderer.RenderDocument(r.Context(), doc)
	if err != nil {
		log.Printf("[PDF] Export failed: %v", err)
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	data := out.Bytes()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pdf.FileName(doc.DisplayName())))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.Printf("Error writing PDF: %v", err)
	}
}

// decodeValue reads any JSON value, keeping numbers exact.
func decodeValue(w http.ResponseWriter, r *http.Request) (any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.New("invalid request body")
	}
	return v, nil
}

func decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	v, err := decodeValue(w, r)
	if err != nil {
		return nil, &ErrValidation{Field: "body", Message: err.Error()}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &ErrValidation{Field: "body", Message: "must be a JSON object"}
	}
	return m, nil
}
