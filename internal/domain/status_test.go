package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_TransitionTable(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusSubmitted, StatusInReview}: true,
		{StatusSubmitted, StatusApproved}: true,
		{StatusSubmitted, StatusRejected}: true,
		{StatusInReview, StatusApproved}:  true,
		{StatusInReview, StatusRejected}:  true,
	}
	for _, from := range Statuses {
		for _, to := range Statuses {
			assert.Equal(t, legal[[2]Status{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_TerminalStatesAreAbsorbing(t *testing.T) {
	for _, s := range []Status{StatusApproved, StatusRejected} {
		assert.True(t, s.Terminal())
		assert.Empty(t, s.NextStatuses())
	}
	assert.False(t, StatusInReview.Terminal())
}

func TestParseStatus_RejectsLegacyVocabulary(t *testing.T) {
	for _, raw := range []string{"pending", "under_review", "pending_documents", ""} {
		_, err := ParseStatus(raw)
		assert.Error(t, err, raw)
	}
	s, err := ParseStatus("in_review")
	require.NoError(t, err)
	assert.Equal(t, StatusInReview, s)
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("officer")
	require.NoError(t, err)
	assert.Equal(t, RoleOfficer, r)

	_, err = ParseRole("user")
	assert.Error(t, err)
	assert.False(t, RoleNone.Valid())
	assert.True(t, RoleAdmin.Personnel())
	assert.False(t, RoleCitizen.Personnel())
}

func TestReplayStatus(t *testing.T) {
	now := time.Now()
	events := []StatusChangeEvent{
		{ID: "e1", OldStatus: StatusSubmitted, NewStatus: StatusInReview, Timestamp: now},
		{ID: "e2", OldStatus: StatusInReview, NewStatus: StatusApproved, Timestamp: now.Add(time.Second)},
	}
	got, err := ReplayStatus(events)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got)

	got, err = ReplayStatus(nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, got)

	_, err = ReplayStatus(events[1:])
	assert.Error(t, err)
}

func TestErrors_MatchSentinels(t *testing.T) {
	assert.True(t, errors.Is(Deny(ReasonNotOwner), ErrPermissionDenied))
	assert.True(t, errors.Is(Invalid("newStatus", "is required"), ErrInvalidInput))
	assert.True(t, errors.Is(&InvalidTransitionError{From: StatusApproved, To: StatusSubmitted}, ErrInvalidTransition))

	fromInReview := NewInvalidTransition(StatusInReview, StatusSubmitted)
	assert.Equal(t, []Status{StatusApproved, StatusRejected}, fromInReview.Allowed)
	assert.Empty(t, NewInvalidTransition(StatusRejected, StatusApproved).Allowed)

	cause := errors.New("timeout")
	storageErr := &StorageError{Op: "GetApplication", Err: cause}
	assert.True(t, errors.Is(storageErr, ErrStorage))
	assert.True(t, errors.Is(storageErr, cause))

	var denied *PermissionDeniedError
	require.True(t, errors.As(error(Deny(ReasonNoRoleAssigned)), &denied))
	assert.Equal(t, ReasonNoRoleAssigned, denied.Reason)
}

func TestStats_AddAndScopeKeys(t *testing.T) {
	stats := NewStats(OwnedBy("u1"))
	stats.Add(StatusSubmitted)
	stats.Add(StatusApproved)
	stats.Add(StatusApproved)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[StatusApproved])
	assert.Equal(t, 0, stats.ByStatus[StatusRejected])
	assert.Equal(t, "owner:u1", stats.Scope)
	assert.Equal(t, "global", GlobalScope().Key())
}
