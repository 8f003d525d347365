package addresser

import (
	"context"

	"github.com/opencontainers/go-digest"
)

// SchemeDigest is the scheme of plain sha256 content digests ("sha256:<hex>").
const SchemeDigest = "digest-sha256"

// Digest addresses content by its canonical OCI digest. It needs no external
// process and is the scheme of choice when identifiers only have to be
// stable within this system.
type Digest struct {
	Algorithm digest.Algorithm
}

// NewDigest returns a sha256 digest addresser.
func NewDigest() *Digest {
	return &Digest{Algorithm: digest.SHA256}
}

func (d *Digest) Scheme() string {
	if d.Algorithm == "" || d.Algorithm == digest.SHA256 {
		return SchemeDigest
	}
	return "digest-" + string(d.Algorithm)
}

func (d *Digest) Address(_ context.Context, payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", newError(KindInvalidInput, "empty payload", nil)
	}
	alg := d.Algorithm
	if alg == "" {
		alg = digest.SHA256
	}
	if !alg.Available() {
		return "", newError(KindInvalidInput, "digest algorithm "+string(alg)+" unavailable", nil)
	}
	return alg.FromBytes(payload).String(), nil
}
