package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_IncluyeServicioEnCadaLinea(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Env: "production", Level: "info", Service: "kardex-api"}, &buf)

	l.Info().Msg("arrancando")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "kardex-api", line["service"])
	assert.Equal(t, "arrancando", line["message"])
}

func TestNewWithWriter_FiltraPorNivel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(Config{Env: "production", Level: "warn"}, &buf)

	l.Debug().Msg("no debería salir")
	assert.Empty(t, buf.Bytes())

	l.Warn().Msg("sí sale")
	assert.NotEmpty(t, buf.Bytes())
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"desconocido", zerolog.InfoLevel},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, parseLevel(tc.in), "nivel %q", tc.in)
	}
}
