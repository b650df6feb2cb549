package analysis

// MaxCustomSearches bounds the per-session search history.
const MaxCustomSearches = 50

// SearchLog is the stored envelope of a session's custom topic searches.
type SearchLog struct {
	Searches []CustomTopicSearch `json:"searches"`
}

// AppendSearch returns a new list with entry appended, dropping the oldest
// entries so that at most limit remain. limit <= 0 means MaxCustomSearches.
func AppendSearch(list []CustomTopicSearch, entry CustomTopicSearch, limit int) []CustomTopicSearch {
	if limit <= 0 {
		limit = MaxCustomSearches
	}
	out := make([]CustomTopicSearch, 0, len(list)+1)
	out = append(out, list...)
	out = append(out, entry)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// PutFrame returns a copy of frames with f stored under its target word.
// Other keys are carried over untouched.
func PutFrame(frames map[string]SemanticFrame, f SemanticFrame) map[string]SemanticFrame {
	out := make(map[string]SemanticFrame, len(frames)+1)
	for k, v := range frames {
		out[k] = v
	}
	out[f.TargetWord] = f
	return out
}

// DropFrame returns a copy of frames without word, and whether word was there.
func DropFrame(frames map[string]SemanticFrame, word string) (map[string]SemanticFrame, bool) {
	if _, ok := frames[word]; !ok {
		return frames, false
	}
	out := make(map[string]SemanticFrame, len(frames))
	for k, v := range frames {
		if k != word {
			out[k] = v
		}
	}
	return out, true
}
