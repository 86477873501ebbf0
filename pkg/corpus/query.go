package corpus

import (
	"fmt"
	"math/rand"

	"github.com/francoispqt/gojay"
)

// OptionsKey is the member stripped from every corpus line and interpreted as per query options
const OptionsKey = "n1qlback"

// Query is one entry in the corpus. Queries are shared read only between workers
type Query struct {
	// Payload is the JSON request body sent to the query service
	Payload []byte
	// Prepare requests prepared execution rather than an ad hoc statement
	Prepare bool
}

func (q Query) String() string {
	return fmt.Sprintf("{prepare:%v %s}", q.Prepare, q.Payload)
}

// ParseQuery decodes a single corpus line
func ParseQuery(line []byte) (Query, error) {
	obj, err := ParseObject(line)
	if err != nil {
		return Query{}, err
	}

	var ret Query
	if raw, ok := obj.Get(OptionsKey); ok {
		opts := options{}
		// a non object value is dropped along with the key
		if err := gojay.UnmarshalJSONObject(raw, &opts); err == nil {
			ret.Prepare = opts.Prepare
		}
		obj = obj.Delete(OptionsKey)
	}

	ret.Payload, err = obj.Bytes()
	if err != nil {
		return Query{}, fmt.Errorf("failed to encode payload: %w", err)
	}
	return ret, nil
}

// Shuffle returns a shuffled copy of in. in is never modified
func Shuffle(in []Query, rng *rand.Rand) []Query {
	ret := make([]Query, len(in))
	copy(ret, in)
	rng.Shuffle(len(ret), func(i, j int) {
		ret[i], ret[j] = ret[j], ret[i]
	})
	return ret
}
