package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/bryanwahyu/sessionlens/internal/application/analyses"
	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
	"github.com/bryanwahyu/sessionlens/internal/middleware"
)

// GET /api/analyses?sessionId=
func (r *Router) handleGetAnalysis(w http.ResponseWriter, req *http.Request) error {
	sessionID := req.URL.Query().Get("sessionId")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		return err
	}
	res, err := r.analysesSvc.Get(req.Context(), middleware.PrincipalFromContext(req.Context()), sessionID)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, res)
}

type upsertRequest struct {
	SessionID    string          `json:"sessionId" validate:"required"`
	AnalysisType string          `json:"analysisType" validate:"required"`
	AnalysisData json.RawMessage `json:"analysisData" validate:"required"`
}

// POST /api/analyses
// Body: {"sessionId": "...", "analysisType": "sentiment|topics|custom_topics|semantic_frame", "analysisData": {...}}
func (r *Router) handleUpsertAnalysis(w http.ResponseWriter, req *http.Request) error {
	var body upsertRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateSessionID(body.SessionID); err != nil {
		return err
	}
	id, err := r.analysesSvc.Upsert(req.Context(), analyses.UpsertCommand{
		UserID:    middleware.PrincipalFromContext(req.Context()),
		SessionID: body.SessionID,
		Type:      body.AnalysisType,
		Data:      body.AnalysisData,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"analysisId": id,
		"message":    "analysis saved",
	})
}

// DELETE /api/analyses?sessionId=[&analysisType=][&targetWord=]
func (r *Router) handleDeleteAnalysis(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	sessionID, analysisType, word := q.Get("sessionId"), q.Get("analysisType"), q.Get("targetWord")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		return err
	}
	user := middleware.PrincipalFromContext(req.Context())

	var err error
	msg := "analysis deleted"
	switch {
	case word != "":
		if analysisType != string(analysis.TypeSemanticFrame) {
			return analysis.Invalid("targetWord", "is only valid with analysisType=%s", analysis.TypeSemanticFrame)
		}
		if err := middleware.ValidateTargetWord(word); err != nil {
			return err
		}
		err = r.analysesSvc.DeleteFrame(req.Context(), user, sessionID, word)
		msg = "semantic frame deleted"
	case analysisType != "":
		err = r.analysesSvc.DeleteType(req.Context(), user, sessionID, analysisType)
		msg = analysisType + " analysis deleted"
	default:
		err = r.analysesSvc.DeleteAll(req.Context(), user, sessionID)
	}
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "message": msg})
}

type summaryRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
	Summary   string `json:"summary"`
}

// PUT /api/analyses/summary
func (r *Router) handleSetSummary(w http.ResponseWriter, req *http.Request) error {
	var body summaryRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	if err := middleware.ValidateSessionID(body.SessionID); err != nil {
		return err
	}
	id, err := r.analysesSvc.SetSummary(req.Context(), middleware.PrincipalFromContext(req.Context()), body.SessionID, body.Summary)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"analysisId": id,
		"message":    "summary saved",
	})
}

// GET /api/saved-custom-searches
func (r *Router) handleSavedSearches(w http.ResponseWriter, req *http.Request) error {
	list, err := r.analysesSvc.SavedSearches(req.Context(), middleware.PrincipalFromContext(req.Context()))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "searches": list})
}
