package corpus

import (
	"bytes"
	"encoding/json"

	"github.com/francoispqt/gojay"
	"github.com/pkg/errors"
)

// ErrMalformedObject is returned for input that is not exactly one complete JSON object
var ErrMalformedObject = errors.New("not a single complete json object")

// KV is a single member of a JSON object with its value kept as raw JSON
type KV struct {
	Key   string
	Value gojay.EmbeddedJSON
}

// Object is a JSON object that preserves member order and leaves values undecoded.
// Re-encoding an Object yields the same members in the same order
type Object []KV

// UnmarshalJSONObject implements gojay.UnmarshalerJSONObject
func (o *Object) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	var v gojay.EmbeddedJSON
	if err := dec.EmbeddedJSON(&v); err != nil {
		return err
	}
	*o = append(*o, KV{Key: key, Value: v})
	return nil
}

// NKeys implements gojay.UnmarshalerJSONObject. 0 means every key is visited
func (o *Object) NKeys() int {
	return 0
}

// MarshalJSONObject implements gojay.MarshalerJSONObject
func (o Object) MarshalJSONObject(enc *gojay.Encoder) {
	for _, kv := range o {
		v := kv.Value
		enc.AddEmbeddedJSONKey(kv.Key, &v)
	}
}

func (o Object) IsNil() bool {
	return o == nil
}

// ParseObject decodes buf into an Object. buf must contain a single JSON object and nothing else
// but whitespace. gojay repairs truncated input, so the shape is checked before decoding
func ParseObject(buf []byte) (Object, error) {
	buf = bytes.TrimSpace(buf)
	if len(buf) == 0 || buf[0] != '{' || !json.Valid(buf) {
		return nil, ErrMalformedObject
	}

	ret := Object{}
	if err := gojay.UnmarshalJSONObject(buf, &ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Bytes encodes the object back to JSON
func (o Object) Bytes() ([]byte, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	return gojay.MarshalJSONObject(o)
}

// Get returns the raw value for key. The first occurrence wins
func (o Object) Get(key string) (gojay.EmbeddedJSON, bool) {
	for _, kv := range o {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// GetString returns the value for key decoded as a string
func (o Object) GetString(key string) (string, bool) {
	v, ok := o.Get(key)
	if !ok {
		return "", false
	}
	var s string
	if err := gojay.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

// Delete returns the object without any member named key
func (o Object) Delete(key string) Object {
	ret := o[:0]
	for _, kv := range o {
		if kv.Key != key {
			ret = append(ret, kv)
		}
	}
	return ret
}

// Set replaces the value of key, or appends the member if it is missing
func (o Object) Set(key string, value []byte) Object {
	for i := range o {
		if o[i].Key == key {
			o[i].Value = append(o[i].Value[:0], value...)
			return o
		}
	}
	return append(o, KV{Key: key, Value: append(gojay.EmbeddedJSON{}, value...)})
}

// options holds the members of the "n1qlback" object. Members of the wrong type are ignored
type options struct {
	Prepare bool
}

func (p *options) UnmarshalJSONObject(dec *gojay.Decoder, key string) error {
	var v gojay.EmbeddedJSON
	if err := dec.EmbeddedJSON(&v); err != nil {
		return err
	}
	switch key {
	case "prepare":
		switch string(bytes.TrimSpace(v)) {
		case "true":
			p.Prepare = true
		case "false":
			p.Prepare = false
		}
	}
	return nil
}

func (p *options) NKeys() int {
	return 0
}
