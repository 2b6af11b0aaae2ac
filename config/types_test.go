package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalDuration(t *testing.T) {
	t.Run("roundtrip", func(t *testing.T) {
		out, err := json.Marshal(NewOptionalDuration(42*time.Hour + time.Minute + 3*time.Second))
		require.NoError(t, err)
		require.Equal(t, `"42h1m3s"`, string(out))

		var d OptionalDuration
		require.NoError(t, json.Unmarshal(out, &d))
		require.Equal(t, 42*time.Hour+time.Minute+3*time.Second, d.WithDefault(0))
	})

	t.Run("default spellings", func(t *testing.T) {
		for _, in := range []string{`null`, `"null"`, `""`, `"default"`} {
			d := *NewOptionalDuration(time.Second)
			require.NoError(t, json.Unmarshal([]byte(in), &d), in)
			require.True(t, d.IsDefault(), in)
			require.Equal(t, time.Hour, d.WithDefault(time.Hour))

			out, err := json.Marshal(d)
			require.NoError(t, err)
			require.Equal(t, "null", string(out))
		}
	})

	t.Run("omitempty", func(t *testing.T) {
		type foo struct {
			D *OptionalDuration `json:",omitempty"`
		}
		out, err := json.Marshal(new(foo))
		require.NoError(t, err)
		require.Equal(t, "{}", string(out))

		var f foo
		require.NoError(t, json.Unmarshal(out, &f))
		require.Equal(t, time.Minute, f.D.WithDefault(time.Minute))
	})

	t.Run("invalid", func(t *testing.T) {
		for _, in := range []string{`"s"`, `"-1s"`, `"1H"`, `"day"`, `12`} {
			var d OptionalDuration
			require.Error(t, json.Unmarshal([]byte(in), &d), in)
		}
	})
}

func TestStrings(t *testing.T) {
	for in, want := range map[string]Strings{
		`"one"`:           {"one"},
		`""`:              {},
		`["one","two"]`:   {"one", "two"},
		`["",  "x", " "]`: {"", "x", " "},
	} {
		var s Strings
		require.NoError(t, json.Unmarshal([]byte(in), &s), in)
		require.Equal(t, want, s)
	}

	out, err := json.Marshal(Strings{"one"})
	require.NoError(t, err)
	require.Equal(t, `"one"`, string(out))

	out, err = json.Marshal(Strings{})
	require.NoError(t, err)
	require.Equal(t, "null", string(out))
}

func TestFlag(t *testing.T) {
	var f Flag
	require.Equal(t, Default, f)
	require.True(t, f.WithDefault(true))
	require.False(t, f.WithDefault(false))
	require.True(t, True.WithDefault(false))
	require.False(t, False.WithDefault(true))

	for in, want := range map[string]Flag{
		"null":      Default,
		`"default"`: Default,
		"true":      True,
		"false":     False,
	} {
		var got Flag
		require.NoError(t, json.Unmarshal([]byte(in), &got))
		require.Equal(t, want, got)
	}

	type foo struct {
		F Flag `json:",omitempty"`
	}
	out, err := json.Marshal(foo{})
	require.NoError(t, err)
	require.Equal(t, "{}", string(out))

	var bad Flag
	require.Error(t, json.Unmarshal([]byte(`"yes"`), &bad))
}

func TestOptionalInteger(t *testing.T) {
	var i *OptionalInteger
	require.True(t, i.IsDefault())
	require.EqualValues(t, 7, i.WithDefault(7))
	require.EqualValues(t, -1, NewOptionalInteger(-1).WithDefault(7))

	var got OptionalInteger
	require.NoError(t, json.Unmarshal([]byte("12"), &got))
	require.EqualValues(t, 12, got.WithDefault(0))
	require.Equal(t, "12", got.String())

	require.NoError(t, json.Unmarshal([]byte(`"default"`), &got))
	require.True(t, got.IsDefault())
	require.Equal(t, "default", got.String())

	out, err := json.Marshal(got)
	require.NoError(t, err)
	require.Equal(t, "null", string(out))

	for _, in := range []string{`"1"`, `1.5`, `[]`} {
		require.Error(t, json.Unmarshal([]byte(in), &got), in)
	}
}

func TestOptionalString(t *testing.T) {
	var s OptionalString
	require.Equal(t, "x", s.WithDefault("x"))
	require.Equal(t, "default", s.String())

	require.NoError(t, json.Unmarshal([]byte(`""`), &s))
	require.False(t, s.IsDefault())
	require.Equal(t, "", s.WithDefault("x"))

	require.NoError(t, json.Unmarshal([]byte(`"size-1024"`), &s))
	out, err := json.Marshal(s)
	require.NoError(t, err)
	require.Equal(t, `"size-1024"`, string(out))

	require.NoError(t, json.Unmarshal([]byte("null"), &s))
	require.True(t, s.IsDefault())

	require.Error(t, json.Unmarshal([]byte("12"), &s))
}

func TestOptionalBytes(t *testing.T) {
	var b OptionalBytes
	assert.True(t, b.IsDefault())
	assert.Equal(t, uint64(1024), b.WithDefault(1024))
	assert.Equal(t, "default", b.String())

	for in, want := range map[string]uint64{
		`"256KiB"`: 262144,
		`"1MiB"`:   1048576,
		`"10GB"`:   10000000000,
		`"256KB"`:  256000,
		`1048576`:  1048576,
	} {
		var b OptionalBytes
		require.NoError(t, json.Unmarshal([]byte(in), &b), in)
		assert.Equal(t, want, b.WithDefault(0), in)
	}

	require.NoError(t, json.Unmarshal([]byte("1048576"), &b))
	out, err := json.Marshal(b)
	require.NoError(t, err)
	assert.Equal(t, `"1048576"`, string(out))

	for _, in := range []string{`"5XiB"`, `"invalid"`, `""`, `[]`, `{}`} {
		var b OptionalBytes
		assert.Error(t, json.Unmarshal([]byte(in), &b), in)
	}

	assert.Panics(t, func() {
		NewOptionalBytes("not-a-size").WithDefault(1)
	})
}
