package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/spec-kit/agency-service/internal/domain"
	"github.com/spec-kit/agency-service/internal/projection"
)

type agencyKey struct{ companyID, agencyID string }

type companyStaffKey struct{ companyID, accountID string }

type agencyStaffKey struct{ companyID, agencyID, accountID string }

type memoryState struct {
	agencies     map[agencyKey]domain.Agency
	directory    map[string]domain.StaffProjection
	companyStaff map[companyStaffKey]domain.StaffProjection
	agencyStaff  map[agencyStaffKey]domain.StaffProjection
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		agencies:     make(map[agencyKey]domain.Agency, len(s.agencies)),
		directory:    make(map[string]domain.StaffProjection, len(s.directory)),
		companyStaff: make(map[companyStaffKey]domain.StaffProjection, len(s.companyStaff)),
		agencyStaff:  make(map[agencyStaffKey]domain.StaffProjection, len(s.agencyStaff)),
	}
	for k, v := range s.agencies {
		out.agencies[k] = v
	}
	for k, v := range s.directory {
		out.directory[k] = v
	}
	for k, v := range s.companyStaff {
		out.companyStaff[k] = v
	}
	for k, v := range s.agencyStaff {
		out.agencyStaff[k] = v
	}
	return out
}

// MemoryDocumentStore is an in-process DocumentStore. Commits are
// all-or-nothing: operations are applied to a copy that replaces the live
// state only when every operation succeeded.
type MemoryDocumentStore struct {
	mu    sync.RWMutex
	state memoryState
	now   func() time.Time

	// BeforeCommit, when set, runs against the sealed operations before they
	// are applied; a non-nil error aborts the commit.
	BeforeCommit func(ops []projection.Op) error
}

// NewMemoryDocumentStore returns an empty store.
func NewMemoryDocumentStore() *MemoryDocumentStore {
	return &MemoryDocumentStore{
		state: memoryState{}.clone(),
		now:   time.Now,
	}
}

func (s *MemoryDocumentStore) CreateAgency(_ context.Context, a *domain.Agency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := agencyKey{a.CompanyID, a.ID}
	if _, exists := s.state.agencies[key]; exists {
		return fmt.Errorf("%w: agency id %s", ErrDuplicate, a.ID)
	}
	if s.nameKeyTaken(a.CompanyID, a.NameKey, a.ID) {
		return fmt.Errorf("%w: agency name %s", ErrDuplicate, a.NameKey)
	}
	now := s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	s.state.agencies[key] = *a
	return nil
}

func (s *MemoryDocumentStore) GetAgency(_ context.Context, companyID, agencyID string) (*domain.Agency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.state.agencies[agencyKey{companyID, agencyID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryDocumentStore) FindAgencyByNameKey(_ context.Context, companyID, nameKey string) (*domain.Agency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for k, a := range s.state.agencies {
		if k.companyID == companyID && a.NameKey == nameKey {
			found := a
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryDocumentStore) DeleteAgency(_ context.Context, companyID, agencyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := agencyKey{companyID, agencyID}
	if _, ok := s.state.agencies[key]; !ok {
		return ErrNotFound
	}
	delete(s.state.agencies, key)
	return nil
}

func (s *MemoryDocumentStore) ListAgencyStaff(_ context.Context, companyID, agencyID string) ([]domain.StaffProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.StaffProjection
	for k, p := range s.state.agencyStaff {
		if k.companyID == companyID && k.agencyID == agencyID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (s *MemoryDocumentStore) FindAgencyRecords(_ context.Context, companyID, accountID string) ([]domain.StaffProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.StaffProjection
	for k, p := range s.state.agencyStaff {
		if k.companyID == companyID && k.accountID == accountID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].AgencyID < *out[j].AgencyID })
	return out, nil
}

func (s *MemoryDocumentStore) GetDirectoryRecord(_ context.Context, accountID string) (*domain.StaffProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.state.directory[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryDocumentStore) GetCompanyRecord(_ context.Context, companyID, accountID string) (*domain.StaffProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.state.companyStaff[companyStaffKey{companyID, accountID}]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// Commit applies the batch atomically.
func (s *MemoryDocumentStore) Commit(_ context.Context, batch *projection.Batch) error {
	ops, err := batch.Seal()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.BeforeCommit != nil {
		if err := s.BeforeCommit(ops); err != nil {
			return err
		}
	}

	next := s.state.clone()
	now := s.now().UTC()
	for i, op := range ops {
		if err := s.apply(next, op, now); err != nil {
			return fmt.Errorf("apply op %d: %w", i, err)
		}
	}
	s.state = next
	return nil
}

func (s *MemoryDocumentStore) apply(st memoryState, op projection.Op, now time.Time) error {
	loc := op.Location
	switch op.Kind {
	case projection.OpMergeStaff:
		switch loc.Kind {
		case projection.KindDirectory:
			st.directory[loc.AccountID] = merged(st.directory[loc.AccountID], loc, op.Fields, now)
		case projection.KindCompany:
			key := companyStaffKey{loc.CompanyID, loc.AccountID}
			st.companyStaff[key] = merged(st.companyStaff[key], loc, op.Fields, now)
		case projection.KindAgency:
			key := agencyStaffKey{loc.CompanyID, loc.AgencyID, loc.AccountID}
			st.agencyStaff[key] = merged(st.agencyStaff[key], loc, op.Fields, now)
		}
	case projection.OpDeleteStaff:
		switch loc.Kind {
		case projection.KindDirectory:
			delete(st.directory, loc.AccountID)
		case projection.KindCompany:
			delete(st.companyStaff, companyStaffKey{loc.CompanyID, loc.AccountID})
		case projection.KindAgency:
			delete(st.agencyStaff, agencyStaffKey{loc.CompanyID, loc.AgencyID, loc.AccountID})
		}
	case projection.OpUpdateAgency:
		a := *op.Agency
		key := agencyKey{a.CompanyID, a.ID}
		prev, ok := st.agencies[key]
		if !ok {
			return ErrNotFound
		}
		if s.nameKeyTakenIn(st, a.CompanyID, a.NameKey, a.ID) {
			return fmt.Errorf("%w: agency name %s", ErrDuplicate, a.NameKey)
		}
		a.CreatedAt = prev.CreatedAt
		a.UpdatedAt = now
		st.agencies[key] = a
	default:
		return fmt.Errorf("unknown op kind %d", op.Kind)
	}
	return nil
}

func merged(prev domain.StaffProjection, loc projection.Location, f projection.Fields, now time.Time) domain.StaffProjection {
	if prev.AccountID == "" {
		prev = domain.StaffProjection{AccountID: loc.AccountID, CreatedAt: now}
	}
	prev.CompanyID = loc.CompanyID
	f.ApplyTo(&prev)
	if loc.Kind == projection.KindAgency {
		id := loc.AgencyID
		prev.AgencyID = &id
	}
	prev.UpdatedAt = now
	return prev
}

func (s *MemoryDocumentStore) nameKeyTaken(companyID, nameKey, exceptID string) bool {
	return s.nameKeyTakenIn(s.state, companyID, nameKey, exceptID)
}

func (s *MemoryDocumentStore) nameKeyTakenIn(st memoryState, companyID, nameKey, exceptID string) bool {
	for k, a := range st.agencies {
		if k.companyID == companyID && a.NameKey == nameKey && a.ID != exceptID {
			return true
		}
	}
	return false
}
