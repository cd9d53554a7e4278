package tracking

import (
	"crypto/rand"
	"math/big"
)

// IDLength is the fixed length of every tracking id.
const IDLength = 12

// Base58: no 0/O/I/l, so codes survive being read aloud or handwritten.
const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// NewID generates a short URL-safe tracking id. 12 characters of base58 give
// roughly 70 bits of entropy, so practical collision probability is
// negligible; the order repository's uniqueness constraint backstops it.
func NewID() string {
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, IDLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform's entropy source is
			// broken, which nothing downstream can recover from.
			panic(err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf)
}
