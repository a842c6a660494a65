// Package classify maps free-text mention content to a tracker issue type.
package classify

import (
	"strings"

	"github.com/tmtriage/triagebot/pkg/models"
)

// Classifier derives a ticket classification from mention text. It is
// pure and deterministic: text starting with the literal token "BUG"
// (case-insensitive, leading whitespace ignored) is a bug, everything
// else is a story.
type Classifier struct {
	bug   models.Classification
	story models.Classification
}

// NewClassifier creates a classifier bound to the configured tracker
// issue type ids.
func NewClassifier(bugTypeID, storyTypeID string) *Classifier {
	return &Classifier{
		bug:   models.Classification{Name: "Bug", TypeID: bugTypeID},
		story: models.Classification{Name: "Story", TypeID: storyTypeID},
	}
}

// Classify returns the classification for the given text. It never fails.
func (c *Classifier) Classify(text string) models.Classification {
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(text)), "BUG") {
		return c.bug
	}
	return c.story
}
