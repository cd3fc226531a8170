package crypto

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

// FuzzDecrypt hammers the blob parser with arbitrary input. Decrypt must never
// panic, and anything that is not a genuine blob must come back as a
// DecryptionError.
func FuzzDecrypt(f *testing.F) {
	f.Add([]byte("c2FsdHNhbHRzYWx0c2FsdG5vbmNlbm9uY2VjdGN0Y3RjdGN0Y3RjdGN0Y3Q="))
	f.Add([]byte("not base64 at all"))
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, data []byte) {
		fz := fuzz.NewConsumer(data)
		blob, err := fz.GetString()
		if err != nil {
			return
		}

		c, err := NewCipher("org-fuzz")
		if err != nil {
			t.Fatalf("cipher construction failed: %v", err)
		}

		if _, err := c.Decrypt(blob); err != nil {
			if _, ok := err.(*DecryptionError); !ok {
				t.Fatalf("unexpected error type %T: %v", err, err)
			}
		}
	})
}

// FuzzEncryptDecrypt checks the round trip for arbitrary plaintexts and
// contexts.
func FuzzEncryptDecrypt(f *testing.F) {
	f.Add("org-1", "a plausible secret value")
	f.Add("x", "y")

	f.Fuzz(func(t *testing.T, orgContext, plaintext string) {
		c, err := NewCipher(orgContext)
		if err != nil {
			return
		}
		blob, err := c.Encrypt(plaintext)
		if err != nil {
			return
		}
		got, err := c.Decrypt(blob)
		if err != nil {
			t.Fatalf("round trip failed: %v", err)
		}
		if got != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
		}
	})
}
