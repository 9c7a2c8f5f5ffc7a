package storage

// Default deposit parameters: every allocation pays for its bytes plus a
// fixed per-allocation overhead.
const (
	DefaultBaseBytes = 128
	DefaultPerByte   = 6960
)

// Rent computes storage deposits.
type Rent struct {
	// BaseBytes is charged on top of every allocation's size.
	BaseBytes int

	// PerByte is the deposit per byte. Zero disables accounting.
	PerByte uint64
}

// DefaultRent returns the default deposit parameters.
func DefaultRent() Rent {
	return Rent{BaseBytes: DefaultBaseBytes, PerByte: DefaultPerByte}
}

// Deposit returns the deposit for an allocation of size bytes.
func (r Rent) Deposit(size int) uint64 {
	if r.PerByte == 0 {
		return 0
	}
	return uint64(r.BaseBytes+size) * r.PerByte
}

// Enabled reports whether deposits are charged.
func (r Rent) Enabled() bool {
	return r.PerByte > 0
}
