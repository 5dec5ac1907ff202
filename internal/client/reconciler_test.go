package client

import (
	"testing"

	"ripple/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messageKey(m *models.Message) uint { return m.ID }

func newTranscript(ids ...uint) *Reconciler[*models.Message] {
	r := NewReconciler(messageKey, Append)
	for _, id := range ids {
		r.ApplyInsert(&models.Message{ID: id, Content: "seed"})
	}
	return r
}

func itemIDs(r *Reconciler[*models.Message]) []uint {
	items := r.Items()
	ids := make([]uint, len(items))
	for i, m := range items {
		ids[i] = m.ID
	}
	return ids
}

func TestApplyInsert_AppendAndPrepend(t *testing.T) {
	chat := NewReconciler(messageKey, Append)
	chat.ApplyInsert(&models.Message{ID: 1})
	chat.ApplyInsert(&models.Message{ID: 2})
	assert.Equal(t, []uint{1, 2}, itemIDs(chat))

	comments := NewReconciler(messageKey, Prepend)
	comments.ApplyInsert(&models.Message{ID: 1})
	comments.ApplyInsert(&models.Message{ID: 2})
	assert.Equal(t, []uint{2, 1}, itemIDs(comments))
}

func TestApplyInsert_EchoAfterResponseIsOneEntry(t *testing.T) {
	// Sending while subscribed delivers the row twice: once as the API
	// response, once as the push echo. Both flow through ApplyInsert.
	r := newTranscript(1, 2)

	response := &models.Message{ID: 3, Content: "hello"}
	echo := &models.Message{ID: 3, Content: "hello"}

	assert.True(t, r.ApplyInsert(response))
	assert.False(t, r.ApplyInsert(echo))

	assert.Equal(t, []uint{1, 2, 3}, itemIDs(r))
	assert.Equal(t, 3, r.Len())
}

func TestApplyUpdate(t *testing.T) {
	r := newTranscript(1, 2)

	assert.True(t, r.ApplyUpdate(&models.Message{ID: 2, Content: "edited"}))
	assert.Equal(t, "edited", r.Items()[1].Content)

	// Updates for rows not in the list are ignored
	assert.False(t, r.ApplyUpdate(&models.Message{ID: 99, Content: "ghost"}))
	assert.Equal(t, 2, r.Len())
}

func TestApplyDelete(t *testing.T) {
	r := newTranscript(1, 2, 3)

	assert.True(t, r.ApplyDelete(2))
	assert.Equal(t, []uint{1, 3}, itemIDs(r))

	assert.False(t, r.ApplyDelete(2))
	assert.Equal(t, 2, r.Len())
}

func TestStageInsert_CommitAndRollback(t *testing.T) {
	r := newTranscript(1)

	id := r.StageInsert(&models.Message{ID: 2, Content: "optimistic"})
	state, ok := r.State(id)
	require.True(t, ok)
	assert.Equal(t, Pending, state)
	assert.Equal(t, []uint{1, 2}, itemIDs(r))
	assert.Equal(t, 1, r.PendingCount())

	r.Commit(id)
	state, _ = r.State(id)
	assert.Equal(t, Committed, state)
	assert.Equal(t, 0, r.PendingCount())
	// The server echo merges without duplicating
	r.ApplyInsert(&models.Message{ID: 2, Content: "optimistic"})
	assert.Equal(t, []uint{1, 2}, itemIDs(r))

	failed := r.StageInsert(&models.Message{ID: 3})
	r.Rollback(failed)
	state, _ = r.State(failed)
	assert.Equal(t, RolledBack, state)
	assert.Equal(t, []uint{1, 2}, itemIDs(r))
}

func TestStageInsert_RollbackRestoresReplacedRow(t *testing.T) {
	// Staging an insert whose ID is already present replaces the row in
	// place; rolling it back must bring the original row back, not drop
	// the entry from the list.
	r := newTranscript(1, 2)

	id := r.StageInsert(&models.Message{ID: 2, Content: "replacement"})
	assert.Equal(t, "replacement", r.Items()[1].Content)

	r.Rollback(id)
	assert.Equal(t, []uint{1, 2}, itemIDs(r))
	assert.Equal(t, "seed", r.Items()[1].Content)
}

func TestStageUpdate_RollbackRestoresPrevious(t *testing.T) {
	r := newTranscript(1, 2)

	id, ok := r.StageUpdate(&models.Message{ID: 2, Content: "edited"})
	require.True(t, ok)
	assert.Equal(t, "edited", r.Items()[1].Content)

	r.Rollback(id)
	assert.Equal(t, "seed", r.Items()[1].Content)

	_, ok = r.StageUpdate(&models.Message{ID: 99})
	assert.False(t, ok)
}

func TestStageDelete_RollbackReinsertsAtPosition(t *testing.T) {
	r := newTranscript(1, 2, 3)

	id, ok := r.StageDelete(2)
	require.True(t, ok)
	assert.Equal(t, []uint{1, 3}, itemIDs(r))

	r.Rollback(id)
	assert.Equal(t, []uint{1, 2, 3}, itemIDs(r))
}

func TestRollback_AfterCommitIsNoOp(t *testing.T) {
	r := newTranscript(1)

	id := r.StageInsert(&models.Message{ID: 2})
	r.Commit(id)
	r.Rollback(id)

	state, _ := r.State(id)
	assert.Equal(t, Committed, state)
	assert.Equal(t, []uint{1, 2}, itemIDs(r))
}

func TestRollbackDelete_SkipsWhenRowCameBack(t *testing.T) {
	// A push echo can re-insert the row before the rollback lands; the
	// rollback must not duplicate it.
	r := newTranscript(1, 2)

	id, _ := r.StageDelete(2)
	r.ApplyInsert(&models.Message{ID: 2, Content: "echo"})
	r.Rollback(id)

	assert.Equal(t, []uint{1, 2}, itemIDs(r))
}

func TestState_UnknownMutation(t *testing.T) {
	r := newTranscript()
	_, ok := r.State(MutationID(42))
	assert.False(t, ok)
}
