package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateSession_StartsInQueryDefinitionPhase(t *testing.T) {
	s := newStore(t)
	id, err := s.CreateSession("user-1")
	require.NoError(t, err)

	cs, err := s.LoadSession(id, false)
	require.NoError(t, err)
	assert.Equal(t, PhaseQueryDefinition, cs.Phase)
	assert.Equal(t, "user-1", cs.UserID)
	assert.Nil(t, cs.ActiveSubgroup)
}

func TestLoadSession_UnknownIDIsInvalidSession(t *testing.T) {
	s := newStore(t)
	_, err := s.LoadSession("does-not-exist", false)
	require.Error(t, err)

	var sErr *Error
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, KindInvalidSession, sErr.Kind)
}

func TestAppendMessage_PersistsInOrder(t *testing.T) {
	s := newStore(t)
	id, err := s.CreateSession("")
	require.NoError(t, err)

	require.NoError(t, s.AppendMessage(id, Message{Role: RoleUser, Content: "find books from Basel"}))
	require.NoError(t, s.AppendMessage(id, Message{Role: RoleAssistant, Content: "found 3 candidates"}))

	cs, err := s.LoadSession(id, false)
	require.NoError(t, err)
	require.Len(t, cs.Messages, 2)
	assert.Equal(t, RoleUser, cs.Messages[0].Role)
	assert.Equal(t, RoleAssistant, cs.Messages[1].Role)
}

func TestSetActiveSubgroup_ReplacesExisting(t *testing.T) {
	s := newStore(t)
	id, err := s.CreateSession("")
	require.NoError(t, err)

	require.NoError(t, s.SetActiveSubgroup(id, ActiveSubgroup{DefiningQuery: "first", RecordIDs: []string{"a", "b"}, CandidateCount: 2}))
	require.NoError(t, s.SetActiveSubgroup(id, ActiveSubgroup{DefiningQuery: "second", RecordIDs: []string{"c"}, CandidateCount: 1}))

	cs, err := s.LoadSession(id, false)
	require.NoError(t, err)
	require.NotNil(t, cs.ActiveSubgroup)
	assert.Equal(t, "second", cs.ActiveSubgroup.DefiningQuery)
	assert.Equal(t, []string{"c"}, cs.ActiveSubgroup.RecordIDs)
}

func TestClearActiveSubgroup_RemovesIt(t *testing.T) {
	s := newStore(t)
	id, err := s.CreateSession("")
	require.NoError(t, err)
	require.NoError(t, s.SetActiveSubgroup(id, ActiveSubgroup{DefiningQuery: "q", RecordIDs: []string{"a"}, CandidateCount: 1}))

	require.NoError(t, s.ClearActiveSubgroup(id))

	cs, err := s.LoadSession(id, false)
	require.NoError(t, err)
	assert.Nil(t, cs.ActiveSubgroup)
}

func TestExpireSession_ExcludedFromLoadUnlessRequested(t *testing.T) {
	s := newStore(t)
	id, err := s.CreateSession("")
	require.NoError(t, err)
	require.NoError(t, s.ExpireSession(id))

	_, err = s.LoadSession(id, false)
	require.Error(t, err)

	cs, err := s.LoadSession(id, true)
	require.NoError(t, err)
	assert.NotEmpty(t, cs.ExpiredAt)
}

func TestDeleteSession_CascadesToMessagesAndSubgroup(t *testing.T) {
	s := newStore(t)
	id, err := s.CreateSession("")
	require.NoError(t, err)
	require.NoError(t, s.AppendMessage(id, Message{Role: RoleUser, Content: "hello"}))
	require.NoError(t, s.SetActiveSubgroup(id, ActiveSubgroup{DefiningQuery: "q", RecordIDs: []string{"a"}, CandidateCount: 1}))

	require.NoError(t, s.DeleteSession(id))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM chat_messages WHERE session_id = ?`, id).Scan(&count))
	assert.Equal(t, 0, count)
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM active_subgroups WHERE session_id = ?`, id).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestLock_ReturnsSameMutexForSameSession(t *testing.T) {
	s := newStore(t)
	m1 := s.Lock("sess-1")
	m2 := s.Lock("sess-1")
	assert.Same(t, m1, m2)
}
