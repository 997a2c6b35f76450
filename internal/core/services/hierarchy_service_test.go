package services

import (
	"testing"

	"estate-commission/internal/adapters/persistence/models"
	"estate-commission/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveIndirectUpline(t *testing.T) {
	agent := &models.Agent{ID: 3}

	got, err := DeriveIndirectUpline(agent, nil)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = DeriveIndirectUpline(agent, &models.Agent{ID: 2})
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = DeriveIndirectUpline(agent, &models.Agent{ID: 2, DirectUplineID: uintPtr(1)})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, uint(1), *got)

	_, err = DeriveIndirectUpline(agent, &models.Agent{ID: 3})
	assert.ErrorIs(t, err, domain.ErrSelfUpline)

	_, err = DeriveIndirectUpline(agent, &models.Agent{ID: 2, DirectUplineID: uintPtr(3)})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestResolveHierarchy(t *testing.T) {
	e := newTestEnv(t)
	top := e.newAgent(t, "TOP", "100", "0", "0", nil)
	mid := e.newAgent(t, "MID", "95", "5", "0", &top.ID)
	seller := e.newAgent(t, "SELL", "90", "7", "3", &mid.ID)

	h, err := e.hierarchy.ResolveHierarchy(bg, seller)
	require.NoError(t, err)
	require.NotNil(t, h.DirectUpline)
	require.NotNil(t, h.IndirectUpline)
	assert.Equal(t, mid.ID, h.DirectUpline.ID)
	assert.Equal(t, top.ID, h.IndirectUpline.ID)
	assert.True(t, h.DirectRate.Equal(dec("7")))
	assert.True(t, h.IndirectRate.Equal(dec("3")))

	h, err = e.hierarchy.ResolveHierarchy(bg, mid)
	require.NoError(t, err)
	assert.Equal(t, top.ID, h.DirectUpline.ID)
	assert.Nil(t, h.IndirectUpline)

	h, err = e.hierarchy.ResolveHierarchy(bg, top)
	require.NoError(t, err)
	assert.Nil(t, h.DirectUpline)
	assert.Nil(t, h.IndirectUpline)
}

func TestAssignDirectUpline_CachesIndirect(t *testing.T) {
	e := newTestEnv(t)
	top := e.newAgent(t, "TOP", "100", "0", "0", nil)
	mid := e.newAgent(t, "MID", "95", "5", "0", &top.ID)
	seller := e.newAgent(t, "SELL", "90", "7", "3", &mid.ID)

	require.NotNil(t, seller.IndirectUplineID)
	assert.Equal(t, top.ID, *seller.IndirectUplineID)
	assert.Nil(t, e.reloadAgent(t, mid.ID).IndirectUplineID)
}

func TestAssignDirectUpline_CascadesToDownlines(t *testing.T) {
	e := newTestEnv(t)
	top := e.newAgent(t, "TOP", "100", "0", "0", nil)
	other := e.newAgent(t, "OTHER", "100", "0", "0", nil)
	mid := e.newAgent(t, "MID", "95", "5", "0", &top.ID)
	seller := e.newAgent(t, "SELL", "90", "7", "3", &mid.ID)

	// Move mid under other: seller's indirect upline follows
	_, err := e.hierarchy.AssignDirectUpline(bg, adminActor, mid.ID, &other.ID)
	require.NoError(t, err)
	got := e.reloadAgent(t, seller.ID)
	require.NotNil(t, got.IndirectUplineID)
	assert.Equal(t, other.ID, *got.IndirectUplineID)

	h, err := e.hierarchy.ResolveHierarchy(bg, got)
	require.NoError(t, err)
	assert.Equal(t, other.ID, h.IndirectUpline.ID)

	// Clear mid's upline: seller has no indirect upline any more
	_, err = e.hierarchy.AssignDirectUpline(bg, adminActor, mid.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, e.reloadAgent(t, seller.ID).IndirectUplineID)
	assert.Nil(t, e.reloadAgent(t, mid.ID).DirectUplineID)
}

func TestAssignDirectUpline_Rejects(t *testing.T) {
	e := newTestEnv(t)
	a := e.newAgent(t, "A", "100", "0", "0", nil)
	b := e.newAgent(t, "B", "95", "5", "0", &a.ID)

	_, err := e.hierarchy.AssignDirectUpline(bg, adminActor, a.ID, &a.ID)
	assert.ErrorIs(t, err, domain.ErrSelfUpline)

	// a under b would make a its own indirect upline
	_, err = e.hierarchy.AssignDirectUpline(bg, adminActor, a.ID, &b.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = e.hierarchy.AssignDirectUpline(bg, adminActor, a.ID, uintPtr(999))
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	_, err = e.hierarchy.AssignDirectUpline(bg, agentActor(a.ID), b.ID, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDownlines(t *testing.T) {
	e := newTestEnv(t)
	top := e.newAgent(t, "TOP", "100", "0", "0", nil)
	mid := e.newAgent(t, "MID", "95", "5", "0", &top.ID)
	e.newAgent(t, "S1", "95", "5", "0", &mid.ID)
	e.newAgent(t, "S2", "95", "5", "0", &mid.ID)

	direct, indirect, err := e.hierarchy.Downlines(bg, top.ID)
	require.NoError(t, err)
	assert.Len(t, direct, 1)
	assert.Len(t, indirect, 2)

	_, _, err = e.hierarchy.Downlines(bg, 999)
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}
