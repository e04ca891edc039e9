// Package projection stages writes to the three denormalized staff views
// (global directory, company roster, agency roster) so that an orchestrator
// can commit every document-store mutation of a call in one atomic batch.
package projection

import (
	"errors"
	"sync"

	"github.com/spec-kit/agency-service/internal/domain"
)

// ErrBatchCommitted is returned when a batch is sealed twice.
var ErrBatchCommitted = errors.New("projection batch already committed")

// Kind names one of the staff projection locations.
type Kind string

const (
	KindDirectory Kind = "staff_directory"
	KindCompany   Kind = "company_staff"
	KindAgency    Kind = "agency_staff"
)

// Location addresses one projection record. AgencyID is only meaningful for
// KindAgency, where it is part of the key.
type Location struct {
	Kind      Kind
	CompanyID string
	AgencyID  string
	AccountID string
}

// Directory returns the global directory location of an account.
func Directory(companyID, accountID string) Location {
	return Location{Kind: KindDirectory, CompanyID: companyID, AccountID: accountID}
}

// Company returns the company roster location of an account.
func Company(companyID, accountID string) Location {
	return Location{Kind: KindCompany, CompanyID: companyID, AccountID: accountID}
}

// Agency returns the agency roster location of an account.
func Agency(companyID, agencyID, accountID string) Location {
	return Location{Kind: KindAgency, CompanyID: companyID, AgencyID: agencyID, AccountID: accountID}
}

// OpKind enumerates staged mutations.
type OpKind int

const (
	OpMergeStaff OpKind = iota + 1
	OpDeleteStaff
	OpUpdateAgency
)

// Op is a single staged mutation.
type Op struct {
	Kind     OpKind
	Location Location
	Fields   Fields
	Agency   *domain.Agency
}

// Batch collects mutations for one commit. It is safe for concurrent use so
// cascade workers can stage into a shared batch.
type Batch struct {
	mu     sync.Mutex
	ops    []Op
	sealed bool
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{}
}

// Merge stages an upsert of the given fields at loc.
func (b *Batch) Merge(loc Location, f Fields) {
	b.append(Op{Kind: OpMergeStaff, Location: loc, Fields: f})
}

// Delete stages removal of the record at loc.
func (b *Batch) Delete(loc Location) {
	b.append(Op{Kind: OpDeleteStaff, Location: loc})
}

// UpdateAgency stages a full rewrite of the agency record.
func (b *Batch) UpdateAgency(a domain.Agency) {
	b.append(Op{Kind: OpUpdateAgency, Agency: &a})
}

// Len returns the number of staged operations.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Ops returns a copy of the staged operations in staging order.
func (b *Batch) Ops() []Op {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Op(nil), b.ops...)
}

// Seal marks the batch committed and returns its operations. A batch can be
// sealed once.
func (b *Batch) Seal() ([]Op, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return nil, ErrBatchCommitted
	}
	b.sealed = true
	return append([]Op(nil), b.ops...), nil
}

func (b *Batch) append(op Op) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ops = append(b.ops, op)
}
