package analyses

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
	"github.com/bryanwahyu/sessionlens/internal/logger"
)

// offloadPlots moves inline chart images to the plot store and keeps the
// returned reference instead. Without a store, or on upload failure, the
// payload is stored as received.
func (s *Service) offloadPlots(ctx context.Context, sessionID string, p analysis.Payload) analysis.Payload {
	if s.Plots == nil {
		return p
	}
	switch v := p.(type) {
	case analysis.SentimentPayload:
		v.Sentiment.FlowerPlot = s.offload(ctx, sessionID, "flower", v.Sentiment.FlowerPlot)
		return v
	case analysis.SemanticFramePayload:
		v.Frame.NetworkPlot = s.offload(ctx, sessionID, "network", v.Frame.NetworkPlot)
		return v
	}
	return p
}

func (s *Service) offload(ctx context.Context, sessionID, kind string, ref *string) *string {
	if ref == nil {
		return nil
	}
	data, contentType, ok := parseImageDataURI(*ref)
	if !ok {
		return ref
	}
	url, err := s.Plots.PutPlot(ctx, sessionID, kind, data, contentType)
	if err != nil {
		logger.WithSession(sessionID, component).
			WithField("plot", kind).
			WithField("error", err.Error()).
			Warn("plot upload failed, keeping inline image")
		return ref
	}
	return &url
}

// parseImageDataURI accepts only base64 "data:image/...;base64," URIs.
func parseImageDataURI(s string) ([]byte, string, bool) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, "", false
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", false
	}
	mediaType, ok := strings.CutSuffix(header, ";base64")
	if !ok || !strings.HasPrefix(mediaType, "image/") {
		return nil, "", false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || len(data) == 0 {
		return nil, "", false
	}
	return data, mediaType, true
}
