package classifier

import (
	"context"

	"github.com/bryanwahyu/sessionlens/internal/domain/analysis"
)

// Classifier labels each sentence as belonging to topic (topic_id 1) or not (nil).
type Classifier interface {
	Classify(ctx context.Context, sentences []string, topic string) ([]analysis.ClassifiedSegment, error)
}
