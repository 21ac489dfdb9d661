package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/annel0/mmo-tools/internal/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStringList(t *testing.T) {
	assert.Nil(t, parseStringList(""))
	assert.Equal(t, []string{"ToolStarted", "ToolFinished"}, parseStringList(" ToolStarted, ,ToolFinished "))
}

func TestShowStats_StopsAtLimit(t *testing.T) {
	bus := eventbus.NewMemoryBus(16)
	defer bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var out bytes.Buffer
	done := make(chan error, 1)
	go func() {
		done <- showStats(ctx, bus, eventbus.Filter{Types: []string{"ToolStarted"}}, 2, &out)
	}()

	emitter := eventbus.NewEmitter(bus, "test")
	require.Eventually(t, func() bool {
		_ = emitter.Emit(context.Background(), "ToolStarted", map[string]any{"kind": "veinminer"})
		_ = emitter.Emit(context.Background(), "ToolRejected", nil)
		select {
		case err := <-done:
			return assert.NoError(t, err)
		default:
			return false
		}
	}, time.Second, 20*time.Millisecond)

	assert.Contains(t, out.String(), "Events: 2")
	assert.Contains(t, out.String(), "ToolStarted")
	assert.NotContains(t, out.String(), "ToolRejected")
}

func TestFormatEvent(t *testing.T) {
	ev, err := eventbus.NewEnvelope("mmo-tools", "ToolFinished", map[string]any{"applied": 3})
	require.NoError(t, err)

	line := formatEvent(ev)
	assert.True(t, strings.Contains(line, "ToolFinished"))
	assert.Contains(t, line, `"applied":3`)
	assert.Contains(t, line, "src=mmo-tools")
}
