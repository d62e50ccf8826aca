package engagement

import (
	"rsd/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveMany_EmitsInitialSnapshots(t *testing.T) {
	a := newAggregator(t)
	require.NoError(t, a.ApplyReaction("p1", "alice", models.ReactionLike))

	ms, err := a.ObserveMany([]string{"p1", "p2"})
	require.NoError(t, err)
	defer ms.Cancel()

	select {
	case batch := <-ms.C():
		require.Len(t, batch, 2)
		assert.Equal(t, 1, batch["p1"].LikeCount)
		assert.Equal(t, 0, batch["p2"].LikeCount)
	case <-time.After(time.Second):
		t.Fatal("expected the initial emission")
	}
}

func TestObserveMany_CoalescesBursts(t *testing.T) {
	a := newAggregator(t)
	ms, err := a.ObserveMany([]string{"p1", "p2"})
	require.NoError(t, err)
	defer ms.Cancel()

	<-ms.C() // initial

	require.NoError(t, a.ApplyReaction("p1", "alice", models.ReactionLike))
	require.NoError(t, a.ApplyReaction("p1", "bob", models.ReactionLike))
	require.NoError(t, a.ApplyCommentDelta("p2", 1))

	// emissions carry the snapshot at flush time, so the burst converges
	// in at most a couple of windows
	latest := map[string]models.EngagementSnapshot{}
	deadline := time.After(2 * time.Second)
	for latest["p1"].LikeCount != 2 || latest["p2"].CommentCount != 1 {
		select {
		case batch := <-ms.C():
			for id, snap := range batch {
				latest[id] = snap
			}
		case <-deadline:
			t.Fatalf("burst never converged: %v", latest)
		}
	}

	select {
	case batch := <-ms.C():
		t.Fatalf("expected no further emission, got %v", batch)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestObserveMany_RejectsInvalidID(t *testing.T) {
	a := newAggregator(t)
	_, err := a.ObserveMany([]string{"p1", ""})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestObserveMany_CancelStopsEmissions(t *testing.T) {
	a := newAggregator(t)
	ms, err := a.ObserveMany([]string{"p1"})
	require.NoError(t, err)

	<-ms.C()
	ms.Cancel()
	ms.Cancel()

	require.NoError(t, a.ApplyReaction("p1", "alice", models.ReactionLike))
	select {
	case batch, ok := <-ms.C():
		if ok {
			t.Fatalf("expected no emission after cancel, got %v", batch)
		}
	case <-time.After(100 * time.Millisecond):
	}
}
