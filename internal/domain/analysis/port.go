package analysis

import (
	"context"
	"time"
)

// ColumnGroup is a bit set of the column groups of a stored record.
type ColumnGroup uint8

const (
	GroupSentiment ColumnGroup = 1 << iota
	GroupTopics
	GroupCustomTopics
	GroupSemanticFrames
	GroupSummary
)

// GroupOf maps an analysis type to the columns it owns.
func GroupOf(t Type) ColumnGroup {
	switch t {
	case TypeSentiment:
		return GroupSentiment
	case TypeTopics:
		return GroupTopics
	case TypeCustomTopics:
		return GroupCustomTopics
	case TypeSemanticFrame:
		return GroupSemanticFrames
	}
	return 0
}

// Columns mirrors the nullable analysis columns. Nested values are JSON text,
// Summary is ciphertext.
type Columns struct {
	Emotions             *string
	EmotionalValence     *float64
	SentimentScore       *float64
	SignificantEmotions  *string
	FlowerPlot           *string
	KeyTopics            *string
	TopicResult          *string
	CustomTopicResults   *string
	SemanticFrameResults *string
	Summary              *string
}

// Record is one stored row, at most one per session.
type Record struct {
	ID              string
	SessionID       string
	PatientID       string
	Language        *string
	AnalysisVersion *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Columns
}

// Change is a partial update. Only the column groups in Groups are written;
// a nil value inside a written group stores NULL. Nil metadata pointers leave
// the column as is.
type Change struct {
	Groups          ColumnGroup
	Values          Columns
	PatientID       *string
	Language        *string
	AnalysisVersion *string
}

// MutateFunc computes a Change from the current, locked row.
type MutateFunc func(current Record) (Change, error)

// Upsert describes an insert-or-update keyed on SessionID. NewID is used only
// when the row does not exist yet.
type Upsert struct {
	NewID     string
	SessionID string
	PatientID string
	Now       time.Time
	Mutate    MutateFunc
}

// Repository port (persistence). Upsert and Update run Mutate inside one
// transaction holding the row, so read-modify-write merges cannot lose updates.
type Repository interface {
	// FindBySession returns nil, nil when the session has no record.
	FindBySession(ctx context.Context, sessionID string) (*Record, error)
	FindBySessions(ctx context.Context, sessionIDs []string) ([]Record, error)
	Upsert(ctx context.Context, u Upsert) (string, error)
	// Update returns ErrNotFound when the session has no record.
	Update(ctx context.Context, sessionID string, now time.Time, fn MutateFunc) (string, error)
	Delete(ctx context.Context, sessionID string) (bool, error)
}

// Cipher encrypts sensitive free text at rest. Decrypt passes through values
// that were never encrypted.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// PlotStore keeps rendered chart images out of the record and returns a reference.
type PlotStore interface {
	PutPlot(ctx context.Context, sessionID, kind string, data []byte, contentType string) (string, error)
}
