package index

import (
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/kailas-cloud/neardup/internal/domain/document"
	"github.com/kailas-cloud/neardup/internal/minhash"
)

// Row field names; the wire schema of a stored document.
const (
	fieldDocName   = "doc_name"
	fieldSignature = "signature"
	fieldTokenSet  = "token_set"

	metaNumPerm = "num_perm"
	metaBands   = "bands"
)

func (r *Repo) metaKey() string {
	return r.prefix + r.collection + ":meta"
}

func (r *Repo) docKey(id int64) string {
	return r.prefix + r.collection + ":doc:" + strconv.FormatInt(id, 10)
}

func (r *Repo) collectionPattern() string {
	return r.prefix + r.collection + ":*"
}

// bandKeys maps a signature onto its LSH bucket keys: the big-endian bytes
// of each band (numPerm/bands consecutive hash values) are hashed into a
// bucket identifier. Equal bands always collide, which is what gives the
// banding scheme its recall.
func (r *Repo) bandKeys(sig minhash.Signature) []string {
	raw := sig.Bytes()
	bandLen := len(raw) / r.params.Bands
	keys := make([]string, r.params.Bands)
	for b := 0; b < r.params.Bands; b++ {
		bucket := xxhash.Sum64(raw[b*bandLen : (b+1)*bandLen])
		keys[b] = r.prefix + r.collection + ":band:" + strconv.Itoa(b) + ":" +
			strconv.FormatUint(bucket, 16)
	}
	return keys
}

// rowFields serializes a document into its stored hash fields. The signature
// travels as raw big-endian bytes; Redis values are binary safe.
func rowFields(doc document.Document) map[string]string {
	return map[string]string{
		fieldDocName:   doc.Name(),
		fieldSignature: string(doc.MinHash().Bytes()),
		fieldTokenSet:  doc.TokenSet(),
	}
}

// row is a parsed stored document.
type row struct {
	docID     int64
	docName   string
	tokenSet  string
	signature minhash.Signature
}

// parseRow hydrates a stored row; an empty field map means the row vanished
// between bucket lookup and fetch, which is reported as corruption since the
// index is append-only between explicit drops.
func parseRow(id string, fields map[string]string) (row, error) {
	docID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return row{}, fmt.Errorf("invalid doc id %q: %w", id, err)
	}
	if len(fields) == 0 {
		return row{}, fmt.Errorf("missing row for doc id %s", id)
	}
	sig, err := minhash.FromBytes([]byte(fields[fieldSignature]))
	if err != nil {
		return row{}, fmt.Errorf("doc id %s: %w", id, err)
	}
	return row{
		docID:     docID,
		docName:   fields[fieldDocName],
		tokenSet:  fields[fieldTokenSet],
		signature: sig,
	}, nil
}
