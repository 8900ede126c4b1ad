package trace

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/migwasm/migwasm/api"
	"github.com/migwasm/migwasm/internal/wasm"
)

func fn(name string) *wasm.Function {
	return &wasm.Function{
		Type:      wasm.NewFunctionType([]api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}),
		DebugName: name,
	}
}

func capturingLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return log, &buf
}

func TestLogrusListenerLogsCallAndReturn(t *testing.T) {
	log, buf := capturingLogger()

	l := NewLogrusListener(log)
	l.Before(fn("add"), []uint64{2})
	l.After(fn("add"), []uint64{3})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "add(0x2)")
	require.Contains(t, lines[1], "add -> (0x3)")
}

func TestLogrusListenerIndentsNestedCalls(t *testing.T) {
	log, buf := capturingLogger()

	l := NewLogrusListener(log)
	l.Before(fn("outer"), nil)
	l.Before(fn("inner"), nil)
	l.After(fn("inner"), nil)
	l.After(fn("outer"), nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	require.Contains(t, lines[0], "msg=\"outer()\"")
	require.Contains(t, lines[1], "msg=\"  inner()\"")
	require.Contains(t, lines[2], "msg=\"  inner -> ()\"")
	require.Contains(t, lines[3], "msg=\"outer -> ()\"")
}

func TestListenerDepthNeverGoesNegative(t *testing.T) {
	log, _ := capturingLogger()
	l := NewLogrusListener(log)
	// After with no matching Before must not panic or underflow depth.
	l.After(fn("orphan"), nil)
	require.Equal(t, 0, l.depth)
}
