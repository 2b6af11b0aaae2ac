package namesys

import (
	"time"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("namesys: cbor encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("namesys: cbor decoder: " + err.Error())
	}
}

// record is the stored form of a published name. Seq grows by one on every
// publish of the same name.
type record struct {
	Value string `cbor:"1,keyasint"`
	Seq   uint64 `cbor:"2,keyasint"`
	EOL   int64  `cbor:"3,keyasint"` // unix nanoseconds
	TTL   int64  `cbor:"4,keyasint"` // nanoseconds
}

func (r *record) eol() time.Time {
	return time.Unix(0, r.EOL)
}

func (r *record) ttl() time.Duration {
	return time.Duration(r.TTL)
}

func encodeRecord(r *record) ([]byte, error) {
	return encMode.Marshal(r)
}

func decodeRecord(b []byte) (*record, error) {
	var r record
	if err := decMode.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
