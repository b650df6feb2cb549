package httpserver

import (
	"context"
	"net/http"

	"github.com/bryanwahyu/sessionlens/internal/application/customtopics"
	"github.com/bryanwahyu/sessionlens/internal/middleware"
)

type searchRequest struct {
	SessionIDs   []string `json:"sessionIds" validate:"required,min=1"`
	CustomTopics []string `json:"customTopics" validate:"required,min=1"`
}

// POST /api/custom-topic-search
// Body: {"sessionIds": ["..."], "customTopics": ["lavoro", "famiglia"]}
func (r *Router) handleCustomTopicSearch(w http.ResponseWriter, req *http.Request) error {
	var body searchRequest
	if err := decode(w, req, &body); err != nil {
		return err
	}
	topics := make([]string, 0, len(body.CustomTopics))
	for _, t := range body.CustomTopics {
		topics = append(topics, middleware.SanitizeString(t))
	}

	// batch tetap jalan sampai selesai walau client disconnect
	ctx := context.WithoutCancel(req.Context())
	entry, err := r.searchSvc.Search(ctx, customtopics.Command{
		UserID:     middleware.PrincipalFromContext(req.Context()),
		SessionIDs: body.SessionIDs,
		Topics:     topics,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": entry})
}
