package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("writes json with service field", func(t *testing.T) {
		var buf bytes.Buffer
		l := New("paygw", WithWriter(&buf))
		l.Info().Str("token", "abc").Msg("created")

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "paygw", line["service"])
		assert.Equal(t, "abc", line["token"])
		assert.Equal(t, "created", line["message"])
	})

	t.Run("level filters lower events", func(t *testing.T) {
		var buf bytes.Buffer
		l := New("paygw", WithWriter(&buf), WithLogLevel("warn"))
		l.Info().Msg("hidden")
		assert.Empty(t, buf.String())
		l.Warn().Msg("shown")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("unknown level keeps info", func(t *testing.T) {
		var buf bytes.Buffer
		l := New("paygw", WithWriter(&buf), WithLogLevel("loud"))
		l.Debug().Msg("hidden")
		l.Info().Msg("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})
}
