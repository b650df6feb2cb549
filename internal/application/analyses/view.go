package analyses

import (
	"encoding/json"

	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
)

// view decodes a stored record. Unreadable fields are reported, listed in
// CorruptFields and left absent; they never fail the read.
func (s *Service) view(rec analysis.Record, title string) analysis.View {
	opts := s.opts()
	v := analysis.View{
		ID:              rec.ID,
		SessionID:       rec.SessionID,
		SessionTitle:    title,
		PatientID:       rec.PatientID,
		Language:        opts.DefaultLanguage,
		AnalysisVersion: opts.AnalysisVersion,
		CreatedAt:       rec.CreatedAt,
		UpdatedAt:       rec.UpdatedAt,
	}
	if rec.Language != nil && *rec.Language != "" {
		v.Language = *rec.Language
	}
	if rec.AnalysisVersion != nil && *rec.AnalysisVersion != "" {
		v.AnalysisVersion = *rec.AnalysisVersion
	}

	if zscores, ok := decodeField[map[string]float64](&v, "sentiment", rec.Emotions); ok {
		sig, _ := decodeField[map[string]float64](&v, "significant_emotions", rec.SignificantEmotions)
		if sig == nil {
			sig = map[string]float64{}
		}
		v.Sentiment = &analysis.Sentiment{
			ZScores:             zscores,
			EmotionalValence:    deref(rec.EmotionalValence),
			SignificantEmotions: sig,
			FlowerPlot:          rec.FlowerPlot,
			SentimentScore:      deref(rec.SentimentScore),
		}
	}

	if doc, ok := rawField(&v, "topics", rec.TopicResult); ok {
		v.Topics = doc
	}
	if kt, ok := rawField(&v, "keyTopics", rec.KeyTopics); ok {
		v.KeyTopics = kt
	}
	if log, ok := decodeField[analysis.SearchLog](&v, "customTopicSearches", rec.CustomTopicResults); ok {
		v.CustomTopicSearches = log.Searches
	}
	if frames, ok := decodeField[map[string]analysis.SemanticFrame](&v, "semanticFrames", rec.SemanticFrameResults); ok {
		v.SemanticFrames = frames
	}

	if rec.Summary != nil {
		plain, err := s.Cipher.Decrypt(*rec.Summary)
		switch {
		case err != nil:
			markCorrupt(&v, "summary", err)
		case plain != "":
			v.Summary = &plain
		}
	}
	return v
}

func decodeField[T any](v *analysis.View, field string, raw *string) (T, bool) {
	d := analysis.DecodeColumn[T](raw)
	if d.State == analysis.Corrupt {
		markCorrupt(v, field, d.Err)
	}
	return d.Get()
}

func rawField(v *analysis.View, field string, raw *string) (json.RawMessage, bool) {
	d := analysis.RawColumn(raw)
	if d.State == analysis.Corrupt {
		markCorrupt(v, field, d.Err)
	}
	return d.Get()
}

func markCorrupt(v *analysis.View, field string, err error) {
	reportCorrupt(v.SessionID, field, err)
	v.CorruptFields = append(v.CorruptFields, field)
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
