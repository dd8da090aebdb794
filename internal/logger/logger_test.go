package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/smartcontractkit/libocr/commontypes"
	"github.com/stretchr/testify/require"
)

func TestWithMergesFields(t *testing.T) {
	var out bytes.Buffer
	l := With(NewWithOutput(logrus.DebugLevel, &out), commontypes.LogFields{"instance": "iid", "player": 1})
	l.Info("hello", commontypes.LogFields{"player": 2, "dealer": 3})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &entry))
	require.Equal(t, "hello", entry["msg"])
	require.Equal(t, "iid", entry["instance"])
	require.EqualValues(t, 2, entry["player"])
	require.EqualValues(t, 3, entry["dealer"])
}

func TestLevels(t *testing.T) {
	var out bytes.Buffer
	l := NewWithOutput(logrus.WarnLevel, &out)
	l.Debug("hidden", nil)
	l.Info("hidden", nil)
	require.Zero(t, out.Len())

	l.Critical("boom", nil)
	require.True(t, strings.Contains(out.String(), "CRITICAL: boom"))
}
