package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypulse-backend/internal/models"
)

func TestComputeRollup_NoSessions(t *testing.T) {
	rollup := ComputeRollup("room-1", nil)

	assert.Equal(t, 0, rollup.TotalStudents)
	assert.Equal(t, 0.0, rollup.AvgComprehensionScore)
	assert.Equal(t, 0.0, rollup.AvgReadingSpeed)
	assert.Empty(t, rollup.StrugglingStudents)
	assert.Empty(t, rollup.TopPerformers)
}

func TestComputeRollup_BucketsAndAverages(t *testing.T) {
	// Idle session: no page time, score 0 -> low/struggling.
	idle := models.NewSessionAggregate("sess-idle", "room-1", "user-idle")

	// Engaged session: 2 pages at 2 min each plus dense annotation.
	engaged := models.NewSessionAggregate("sess-engaged", "room-1", "user-engaged")
	engaged.PageTimeSpent = map[int]int64{1: 120000, 2: 120000}
	engaged.PagesVisited = map[int]int{1: 1, 2: 1}
	for i := 0; i < 4; i++ {
		engaged.Highlights = append(engaged.Highlights, models.Highlight{Page: 1})
		engaged.Annotations = append(engaged.Annotations, models.Annotation{Page: 2})
	}

	rollup := ComputeRollup("room-1", []*models.SessionAggregate{idle, engaged})

	require.Equal(t, 2, rollup.TotalStudents)
	require.Len(t, rollup.Students, 2)

	assert.Equal(t, 1, rollup.EngagementDistribution.Low)
	assert.Equal(t, 1, rollup.EngagementDistribution.High)
	assert.Equal(t, 0, rollup.EngagementDistribution.Medium)

	require.Len(t, rollup.StrugglingStudents, 1)
	assert.Equal(t, "sess-idle", rollup.StrugglingStudents[0].SessionID)

	require.Len(t, rollup.TopPerformers, 1)
	assert.Equal(t, "sess-engaged", rollup.TopPerformers[0].SessionID)
	assert.Equal(t, 4, rollup.TopPerformers[0].Highlights)

	// engaged: highlight min(4/2*20,30)=30, annotation min(4/2*30,40)=40,
	// time min(120/60*30,30)=30 -> 100; averaged with the idle 0.
	assert.Equal(t, 50.0, rollup.AvgComprehensionScore)
}
