package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strp(s string) *string { return &s }

func TestDecodeColumn(t *testing.T) {
	absent := DecodeColumn[map[string]float64](nil)
	assert.Equal(t, Absent, absent.State)

	blank := DecodeColumn[map[string]float64](strp("  "))
	assert.Equal(t, Absent, blank.State)

	ok := DecodeColumn[map[string]float64](strp(`{"joy":1}`))
	v, present := ok.Get()
	assert.True(t, present)
	assert.Equal(t, 1.0, v["joy"])

	bad := DecodeColumn[map[string]float64](strp(`{"joy":`))
	_, present = bad.Get()
	assert.False(t, present)
	assert.Equal(t, Corrupt, bad.State)
	assert.Error(t, bad.Err)
}

func TestRawColumn(t *testing.T) {
	assert.Equal(t, Absent, RawColumn(nil).State)
	assert.Equal(t, Corrupt, RawColumn(strp("{nope")).State)

	d := RawColumn(strp(`{"a":1}`))
	assert.Equal(t, Present, d.State)
	assert.Equal(t, json.RawMessage(`{"a":1}`), d.Value)
}

func TestValidSentiment(t *testing.T) {
	full := `{"z_scores":{"joy":1,"trust":0.5,"fear":-1,"surprise":0,"sadness":2,"disgust":0.1,"anger":0,"anticipation":1.5},"emotional_valence":0.2}`
	assert.True(t, ValidSentiment(json.RawMessage(full)))

	cases := map[string]string{
		"missing emotion":   `{"z_scores":{"joy":1,"trust":0.5,"fear":-1,"surprise":0,"sadness":2,"disgust":0.1,"anger":0},"emotional_valence":0.2}`,
		"string emotion":    `{"z_scores":{"joy":"1","trust":0.5,"fear":-1,"surprise":0,"sadness":2,"disgust":0.1,"anger":0,"anticipation":1},"emotional_valence":0.2}`,
		"null valence":      `{"z_scores":{"joy":1,"trust":0.5,"fear":-1,"surprise":0,"sadness":2,"disgust":0.1,"anger":0,"anticipation":1},"emotional_valence":null}`,
		"missing valence":   `{"z_scores":{"joy":1,"trust":0.5,"fear":-1,"surprise":0,"sadness":2,"disgust":0.1,"anger":0,"anticipation":1}}`,
		"not an object":     `[]`,
		"empty":             ``,
	}
	for name, raw := range cases {
		assert.False(t, ValidSentiment(json.RawMessage(raw)), name)
	}
}
