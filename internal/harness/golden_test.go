package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Hello(t *testing.T) {
	scenario := &Scenario{
		Name:        "hello",
		Description: "The program prints, then an evaluation prints",
		Program:     `print("hello");`,
		Steps:       []Step{{Evaluate: `print("again")`}},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Event: EventPrint, Count: 2},
		},
	}

	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestMarshalSnapshot(t *testing.T) {
	data, err := MarshalSnapshot("s", []TraceEvent{
		{Seq: 1, Type: EventPrint, Message: "<a> & b"},
	})
	require.NoError(t, err)

	want := `{
  "scenario_name": "s",
  "trace": [
    {
      "seq": 1,
      "type": "print",
      "message": "<a> & b"
    }
  ]
}
`
	assert.Equal(t, want, string(data))
}

func TestMarshalSnapshot_EmptyTrace(t *testing.T) {
	data, err := MarshalSnapshot("empty", []TraceEvent{})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"trace": []`)
}
