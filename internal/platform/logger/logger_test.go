package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json format carries service attribute", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "info", "json")
		log.Info("country entered", "country_code", "TH")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "supernomad", line["service"])
		assert.Equal(t, "TH", line["country_code"])
	})

	t.Run("level filters lower records", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "warn", "text")
		log.Info("dropped")
		assert.Empty(t, buf.String())
		log.Warn("kept")
		assert.Contains(t, buf.String(), "kept")
	})
}
