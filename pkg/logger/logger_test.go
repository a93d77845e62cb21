package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Env: "production", Level: "warn", Out: &buf})

	l.Info().Msg("descartado")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("emitido")
	assert.Contains(t, buf.String(), `"emitido"`)
}

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Env: "production", Level: "ruido", Out: &buf})

	l.Debug().Msg("descartado")
	assert.Zero(t, buf.Len())

	l.Info().Msg("emitido")
	assert.Contains(t, buf.String(), `"emitido"`)
}

func TestBatchCarriesCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Env: "production", Level: "info", Out: &buf})

	l.Batch("lote-1", 7, 3, true).Info().Msg("lote conciliado")

	var event map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "lote-1", event["batch"])
	assert.EqualValues(t, 7, event["issuer"])
	assert.EqualValues(t, 3, event["records"])
	assert.Equal(t, true, event["voiding"])
}
