package contextstore

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// digestKey separates context digests from any other BLAKE3 use: the ASCII
// domain name zero-padded to 32 bytes.
var digestKey = [32]byte{
	'f', 'r', 'a', 'm', 'e', 'c', 'a', 's', 't', '.', 'c', 'o', 'n', 't', 'e', 'x',
	't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// digest returns the hex keyed BLAKE3-256 hash of the uncompressed JSON.
func digest(raw []byte) string {
	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		// Only returned for a key of the wrong length.
		panic("contextstore: blake3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(raw)
	return hex.EncodeToString(hasher.Sum(nil))
}
