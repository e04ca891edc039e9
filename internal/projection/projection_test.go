package projection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/agency-service/internal/domain"
)

func TestBatchSealOnce(t *testing.T) {
	b := NewBatch()
	b.Delete(Directory("acme", "u1"))

	ops, err := b.Seal()
	require.NoError(t, err)
	assert.Len(t, ops, 1)

	_, err = b.Seal()
	assert.ErrorIs(t, err, ErrBatchCommitted)
}

func TestBatchConcurrentStaging(t *testing.T) {
	b := NewBatch()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Merge(Company("acme", "u"), Fields{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.Len())
}

func TestStageMemberWritesThreeCopies(t *testing.T) {
	b := NewBatch()
	agency := "ag1"
	StageMember(b, Member{AccountID: "u1", CompanyID: "acme", AgencyID: &agency, Name: "Awa", Email: "awa@example.com", Role: domain.RoleBranchManager})

	ops := b.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, Directory("acme", "u1"), ops[0].Location)
	assert.Equal(t, Company("acme", "u1"), ops[1].Location)
	assert.Equal(t, Agency("acme", "ag1", "u1"), ops[2].Location)
	require.NotNil(t, ops[2].Fields.AgencyID)
	assert.Equal(t, "ag1", *ops[2].Fields.AgencyID)
}

func TestStageMemberDetachedSkipsAgencyCopy(t *testing.T) {
	b := NewBatch()
	StageMember(b, Member{AccountID: "u1", CompanyID: "acme", Name: "Awa"})

	ops := b.Ops()
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.True(t, op.Fields.ClearAgency)
	}
}

func TestStageRelocateMovesAgencyRecord(t *testing.T) {
	from := "north"
	current := domain.StaffProjection{AccountID: "u1", CompanyID: "acme", AgencyID: &from, Name: "Awa", Email: "awa@example.com", Role: domain.RoleAgent, Status: domain.StaffStatusActive}
	target := "south"

	b := NewBatch()
	StageRelocate(b, current, []string{"north"}, &target, Fields{})

	ops := b.Ops()
	require.Len(t, ops, 4)
	assert.Equal(t, OpDeleteStaff, ops[0].Kind)
	assert.Equal(t, Agency("acme", "north", "u1"), ops[0].Location)

	assert.Equal(t, Agency("acme", "south", "u1"), ops[1].Location)
	var rebuilt domain.StaffProjection
	ops[1].Fields.ApplyTo(&rebuilt)
	assert.Equal(t, "Awa", rebuilt.Name)
	require.NotNil(t, rebuilt.AgencyID)
	assert.Equal(t, "south", *rebuilt.AgencyID)

	assert.Equal(t, "south", *ops[2].Fields.AgencyID)
	assert.Nil(t, ops[2].Fields.Name)
}

func TestStageRelocateToSameAgencyKeepsRecord(t *testing.T) {
	agency := "north"
	current := domain.StaffProjection{AccountID: "u1", CompanyID: "acme", AgencyID: &agency}
	name := "Renamed"

	b := NewBatch()
	StageRelocate(b, current, []string{"north"}, &agency, Fields{Name: &name})

	for _, op := range b.Ops() {
		assert.NotEqual(t, OpDeleteStaff, op.Kind)
	}
}

func TestStageRelocateDetach(t *testing.T) {
	agency := "north"
	current := domain.StaffProjection{AccountID: "u1", CompanyID: "acme", AgencyID: &agency}

	b := NewBatch()
	StageRelocate(b, current, []string{"north"}, nil, Fields{})

	ops := b.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, OpDeleteStaff, ops[0].Kind)
	assert.True(t, ops[1].Fields.ClearAgency)
	assert.True(t, ops[2].Fields.ClearAgency)
}

func TestFieldsOverlay(t *testing.T) {
	a, b := "a", "b"
	base := Fields{Name: &a, AgencyID: &a}
	out := base.Overlay(Fields{Name: &b, ClearAgency: true})
	assert.Equal(t, "b", *out.Name)
	assert.Nil(t, out.AgencyID)
	assert.True(t, out.ClearAgency)
}

func TestStageLeaveCompanyKeepsDirectoryCopy(t *testing.T) {
	b := NewBatch()
	StageLeaveCompany(b, "acme", "u1", []string{"ag1", "ag2"})

	ops := b.Ops()
	require.Len(t, ops, 3)
	for _, op := range ops {
		assert.Equal(t, OpDeleteStaff, op.Kind)
		assert.NotEqual(t, KindDirectory, op.Location.Kind)
	}
	assert.Equal(t, Company("acme", "u1"), ops[2].Location)

	b = NewBatch()
	StageRemove(b, "acme", "u1", []string{"ag1"})
	ops = b.Ops()
	require.Len(t, ops, 3)
	assert.Equal(t, Directory("acme", "u1"), ops[2].Location)
}
