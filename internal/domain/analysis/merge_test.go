package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func search(i int) CustomTopicSearch {
	return CustomTopicSearch{
		Query:     fmt.Sprintf("q%d", i),
		Timestamp: time.Date(2025, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestAppendSearch_KeepsNewestFifty(t *testing.T) {
	var list []CustomTopicSearch
	for i := 0; i < 57; i++ {
		list = AppendSearch(list, search(i), 0)
		require.LessOrEqual(t, len(list), MaxCustomSearches)
	}

	require.Len(t, list, MaxCustomSearches)
	for i, s := range list {
		assert.Equal(t, fmt.Sprintf("q%d", i+7), s.Query, "oldest-first order among retained entries")
	}
}

func TestAppendSearch_DoesNotAliasInput(t *testing.T) {
	base := []CustomTopicSearch{search(0), search(1)}
	out := AppendSearch(base[:1], search(9), 10)

	assert.Equal(t, "q1", base[1].Query)
	assert.Equal(t, []string{"q0", "q9"}, []string{out[0].Query, out[1].Query})
}

func TestAppendSearch_CustomLimit(t *testing.T) {
	list := []CustomTopicSearch{search(0), search(1), search(2)}
	out := AppendSearch(list, search(3), 2)
	require.Len(t, out, 2)
	assert.Equal(t, "q2", out[0].Query)
	assert.Equal(t, "q3", out[1].Query)
}

func TestPutFrame_ReplacesOnlyTargetWord(t *testing.T) {
	frames := map[string]SemanticFrame{
		"madre": {TargetWord: "madre", Timestamp: "t1"},
		"padre": {TargetWord: "padre", Timestamp: "t1"},
	}

	out := PutFrame(frames, SemanticFrame{TargetWord: "madre", Timestamp: "t2"})

	require.Len(t, out, 2)
	assert.Equal(t, "t2", out["madre"].Timestamp)
	assert.Equal(t, frames["padre"], out["padre"])
	assert.Equal(t, "t1", frames["madre"].Timestamp, "input map untouched")
}

func TestPutFrame_KeysAreCaseSensitive(t *testing.T) {
	out := PutFrame(nil, SemanticFrame{TargetWord: "Lavoro"})
	out = PutFrame(out, SemanticFrame{TargetWord: "lavoro"})
	assert.Len(t, out, 2)
}

func TestDropFrame(t *testing.T) {
	frames := map[string]SemanticFrame{"a": {TargetWord: "a"}, "b": {TargetWord: "b"}}

	out, ok := DropFrame(frames, "a")
	require.True(t, ok)
	assert.Len(t, out, 1)
	assert.Contains(t, out, "b")
	assert.Len(t, frames, 2)

	_, ok = DropFrame(frames, "missing")
	assert.False(t, ok)
}
