package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Testdata(t *testing.T) {
	for _, name := range []string{"counter_basics", "nested_thunks"} {
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, result.Errors)
		})
	}
}

func TestSnapshot_Canonical(t *testing.T) {
	result := NewResult("s1")
	result.AddDeferredTrace("extra", nil, 1)
	result.AddDeferredTrace("read_state", map[string]any{"key": "b"}, 2)
	result.State = State{"b": int64(1), "a": "x"}

	data, err := Snapshot(&Scenario{Name: "snap", Session: "s1"}, result)
	require.NoError(t, err)

	want := `{"final_state":{"a":"x","b":1},"scenario":"snap","session":"s1","trace":[` +
		`{"kind":"deferred","seq":1,"type":"extra"},` +
		`{"kind":"deferred","payload":{"key":"b"},"seq":2,"type":"read_state"}]}`
	assert.Equal(t, want, string(data))
}

func TestSnapshot_EmptyTrace(t *testing.T) {
	data, err := Snapshot(&Scenario{Name: "empty", Session: "s"}, NewResult("s"))
	require.NoError(t, err)
	assert.Equal(t, `{"final_state":{},"scenario":"empty","session":"s","trace":[]}`, string(data))
}

func TestSnapshot_OmitsGeneratedSession(t *testing.T) {
	first := NewResult("0190b0a0-0000-7000-8000-000000000001")
	second := NewResult("0190b0a0-0000-7000-8000-000000000002")

	a, err := Snapshot(&Scenario{Name: "gen"}, first)
	require.NoError(t, err)
	b, err := Snapshot(&Scenario{Name: "gen"}, second)
	require.NoError(t, err)

	assert.Equal(t, `{"final_state":{},"scenario":"gen","trace":[]}`, string(a))
	assert.Equal(t, string(a), string(b))
}
