package encoding

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nviro-labs/pathway/encoding/dummy"
)

type testStruct struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	KeyPoints  []string `json:"key_points,omitempty"`
}

func TestNewTypedOutputParser_OK(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModeJSON)
	require.NoError(t, err)
	require.NotNil(t, parser)
	assert.NotEmpty(t, parser.GetFormatInstructions())
	assert.Contains(t, parser.Type(), "testStruct")

	_, err = NewTypedOutputParser(testStruct{}, "unknown")
	require.Error(t, err)
}

func TestTypedOutputParser_Parse(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModeJSON)
	require.NoError(t, err)

	input := `{"answer": "9 communes", "confidence": 0.8, "key_points": ["Atacama"]}`
	result, err := parser.Parse(input)
	require.NoError(t, err)
	assert.Equal(t, "9 communes", result.Answer)
	assert.Equal(t, 0.8, result.Confidence)
	assert.Equal(t, []string{"Atacama"}, result.KeyPoints)

	// fenced output with chatter around it still parses
	fenced := "Here is the result:\n```json\n{\"answer\": \"ok\", \"confidence\": 1}\n```\nDone."
	result, err = parser.Parse(fenced)
	require.NoError(t, err)
	assert.Equal(t, "ok", result.Answer)
}

func TestTypedOutputParser_WithValidation(t *testing.T) {
	t.Parallel()
	parser, err := NewTypedOutputParser(testStruct{}, ModePlainText)
	require.NoError(t, err)
	parser.WithValidation(true)
	val, err := parser.Parse(`{"answer": "x"}`)
	require.NoError(t, err)
	require.NotNil(t, val)

	badParser := &TypedOutputParser[testStruct]{
		enc:      &badValidator{},
		name:     "bad",
		validate: true,
	}
	_, err = badParser.Parse(`{"answer": "x"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to validate")
}

type badValidator struct{ dummy.Encoder }

func (badValidator) Validate(any) error            { return errors.New("fail validate") }
func (badValidator) GetFormatInstructions() string { return "" }

func TestSimpleOutputParser(t *testing.T) {
	t.Parallel()
	parser := NewSimpleOutputParser()
	assert.Empty(t, parser.GetFormatInstructions())
	assert.Equal(t, "simple_parser", parser.Type())

	out, err := parser.Parse("  an answer \n")
	require.NoError(t, err)
	assert.Equal(t, "an answer", out.String())
}
