package domain

// Disposition decides what happens to staff when their agency is removed.
type Disposition string

const (
	DispositionDetach   Disposition = "detach"
	DispositionTransfer Disposition = "transfer"
	DispositionDisable  Disposition = "disable"
	DispositionDelete   Disposition = "delete"
)

// Valid reports whether d is a known disposition.
func (d Disposition) Valid() bool {
	switch d {
	case DispositionDetach, DispositionTransfer, DispositionDisable, DispositionDelete:
		return true
	}
	return false
}
