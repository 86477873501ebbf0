package corpus

import (
	"errors"
	"io/ioutil"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	errors2 "github.com/assetnote/n1qlback/pkg/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Query
		wantErr bool
	}{
		{"plain", `{"statement":"SELECT 1"}`, Query{Payload: []byte(`{"statement":"SELECT 1"}`)}, false},
		{"prepare true", `{"statement":"SELECT 1","n1qlback":{"prepare":true}}`, Query{Payload: []byte(`{"statement":"SELECT 1"}`), Prepare: true}, false},
		{"prepare false", `{"n1qlback":{"prepare":false},"statement":"SELECT 1"}`, Query{Payload: []byte(`{"statement":"SELECT 1"}`)}, false},
		{"prepare wrong type", `{"statement":"SELECT 1","n1qlback":{"prepare":"yes"}}`, Query{Payload: []byte(`{"statement":"SELECT 1"}`)}, false},
		{"options not object", `{"statement":"SELECT 1","n1qlback":true}`, Query{Payload: []byte(`{"statement":"SELECT 1"}`)}, false},
		{"order preserved", `{"b":1,"a":[1,2],"c":{"d":null}}`, Query{Payload: []byte(`{"b":1,"a":[1,2],"c":{"d":null}}`)}, false},
		{"array", `[1,2,3]`, Query{}, true},
		{"garbage", `SELECT 1`, Query{}, true},
		{"truncated", `{"statement":`, Query{}, true},
		{"unclosed", `{"statement":"SELECT 1"`, Query{}, true},
		{"trailing garbage", `{"a":1} garbage`, Query{}, true},
		{"two objects", `{"a":1}{"b":2}`, Query{}, true},
		{"bad nested value", `{"a":[1,}`, Query{}, true},
		{"surrounding whitespace", "  {\"a\":1}\t", Query{Payload: []byte(`{"a":1}`)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseQuery([]byte(tt.in))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(tt.want.Payload), string(got.Payload))
			assert.Equal(t, tt.want.Prepare, got.Prepare)
		})
	}
}

func TestLoad_SkipsMalformed(t *testing.T) {
	input := strings.Join([]string{
		`{"statement":"SELECT 1"}`,
		``,
		`not json`,
		`{"statement":"SELECT 2","n1qlback":{"prepare":true}}`,
		`   `,
		`{"statement":`,
		`{"statement":"SELECT 3"} trailing`,
	}, "\n")

	got, err := Load(strings.NewReader(input), "test")
	require.Error(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, `{"statement":"SELECT 1"}`, string(got[0].Payload))
	assert.True(t, got[1].Prepare)

	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 3)

	var lerr *errors2.LoadError
	require.True(t, errors.As(merr.Errors[0], &lerr))
	assert.Equal(t, 3, lerr.Line)
	require.True(t, errors.As(merr.Errors[1], &lerr))
	assert.Equal(t, 6, lerr.Line)
	assert.True(t, errors.Is(lerr, ErrMalformedObject))
	require.True(t, errors.As(merr.Errors[2], &lerr))
	assert.Equal(t, 7, lerr.Line)
}

func TestLoad_Clean(t *testing.T) {
	got, err := Load(strings.NewReader("{\"a\":1}\n{\"b\":2}\n"), "test")
	assert.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestLoadFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "corpus")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	fn := filepath.Join(dir, "queries.json")
	require.NoError(t, ioutil.WriteFile(fn, []byte("{\"statement\":\"SELECT 1\"}\n"), 0644))

	got, err := LoadFile(fn, false)
	assert.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = LoadFile(filepath.Join(dir, "missing.json"), false)
	assert.Error(t, err)
}

func TestShuffle_CopiesInput(t *testing.T) {
	in := make([]Query, 50)
	for i := range in {
		in[i] = Query{Payload: []byte{byte(i)}}
	}
	orig := make([]Query, len(in))
	copy(orig, in)

	got := Shuffle(in, rand.New(rand.NewSource(42)))
	assert.Equal(t, orig, in, "input must not be reordered")
	assert.ElementsMatch(t, in, got)
	assert.NotEqual(t, in, got)
}

func TestObject_SetDelete(t *testing.T) {
	obj, err := ParseObject([]byte(`{"statement":"SELECT 1","args":[1]}`))
	require.NoError(t, err)

	obj = obj.Delete("statement")
	obj = obj.Set("prepared", []byte(`"p1"`))
	b, err := obj.Bytes()
	require.NoError(t, err)
	assert.Equal(t, `{"args":[1],"prepared":"p1"}`, string(b))

	s, ok := obj.GetString("prepared")
	assert.True(t, ok)
	assert.Equal(t, "p1", s)
}
