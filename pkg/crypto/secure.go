package crypto

// secretBuffer holds key material or plaintext that must not outlive its use.
// Go's garbage collector gives no guarantee about when (or whether) freed
// memory is overwritten, so every exit path must call Wipe explicitly,
// typically via defer.
type secretBuffer struct {
	data []byte
}

func newSecretBuffer(b []byte) *secretBuffer {
	return &secretBuffer{data: b}
}

// Bytes exposes the underlying buffer. The slice is only valid until Wipe.
func (s *secretBuffer) Bytes() []byte { return s.data }

// Wipe zeroes the buffer. Safe to call more than once.
func (s *secretBuffer) Wipe() {
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = s.data[:0]
}
