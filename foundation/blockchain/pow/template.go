package pow

import (
	"strconv"

	"github.com/ardanlabs/blockminer/foundation/blockchain/database"
	"github.com/ardanlabs/blockminer/foundation/blockchain/signature"
)

// Template holds the encoded block that every nonce is appended to. Hashing
// a template is a pure function of the nonce.
type Template struct {
	prefix []byte
}

// NewTemplate encodes the header without its nonce followed by the coinbase
// and each transaction of the block.
func NewTemplate(b database.Block) (Template, error) {
	header, err := b.Header.EncodeTemplate()
	if err != nil {
		return Template{}, err
	}

	body, err := b.EncodeBody()
	if err != nil {
		return Template{}, err
	}

	prefix := make([]byte, 0, len(header)+len(body))
	prefix = append(prefix, header...)
	prefix = append(prefix, body...)

	return Template{prefix: prefix}, nil
}

// Hash returns SHA-256 applied twice to the template followed by the decimal
// text of the nonce.
func (t Template) Hash(nonce uint64) Digest {
	return t.hasher().hash(nonce)
}

// hasher reuses a buffer across nonces. A hasher is owned by a single
// goroutine.
type hasher struct {
	buf []byte
	n   int
}

func (t Template) hasher() *hasher {
	buf := make([]byte, len(t.prefix), len(t.prefix)+20)
	copy(buf, t.prefix)

	return &hasher{buf: buf, n: len(t.prefix)}
}

func (h *hasher) hash(nonce uint64) Digest {
	h.buf = strconv.AppendUint(h.buf[:h.n], nonce, 10)
	return Digest(signature.DoubleHash(h.buf))
}
