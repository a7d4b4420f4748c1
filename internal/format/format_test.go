package format

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite_JSONAndYAML(t *testing.T) {
	v := map[string]any{"data": map[string]any{"id": 7, "title": "Print"}}

	var js bytes.Buffer
	require.NoError(t, Write(&js, v, "json", false))
	assert.Equal(t, "{\"data\":{\"id\":7,\"title\":\"Print\"}}\n", js.String())

	var ym bytes.Buffer
	require.NoError(t, Write(&ym, v, "yaml", false))
	assert.Equal(t, "data:\n  id: 7\n  title: Print\n", ym.String())

	assert.Error(t, Write(&js, v, "edn", false))
}

func TestWriteYAML_UsesJSONTags(t *testing.T) {
	type rec struct {
		RecordID int64 `json:"recordId"`
		Skip     string `json:"skip,omitempty"`
	}
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, rec{RecordID: 3}))
	assert.Equal(t, "recordId: 3\n", buf.String())
}

func TestMoney(t *testing.T) {
	tests := []struct {
		cents int64
		code  string
		want  string
	}{
		{490000, "USD", "$4,900.00"},
		{150000, "", "$1,500.00"},
		{5, "usd", "$0.05"},
		{-1250, "USD", "-$12.50"},
		{123456789, "EUR", "€1,234,567.89"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Money(tt.cents, tt.code), "%d %s", tt.cents, tt.code)
	}
}

func TestParseMoney(t *testing.T) {
	n, err := ParseMoney(" 1500 ")
	require.NoError(t, err)
	assert.Equal(t, int64(1500), n)

	n, err = ParseMoney("")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = ParseMoney("12.50")
	assert.Error(t, err)
}

func TestOrderNumber(t *testing.T) {
	assert.Equal(t, "#000042", OrderNumber(42))
	assert.Equal(t, "#1234567", OrderNumber(1234567))
}
