package tracer

// ============================================================================
// Tracer Test File
// Purpose: Verify capacity saturation, JSON shape, and per-goroutine tid
//   stability, per spec.md §8 tracer properties and concrete scenario 6.
// ============================================================================

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracerBeginEndCount(t *testing.T) {
	tr := New(10)
	tr.Begin("load", "io")
	tr.End("load", "io")
	assert.Equal(t, 2, tr.Count())
}

func TestTracerSaturatesAndDrops(t *testing.T) {
	tr := New(2)
	tr.Begin("a", "cat")
	tr.Begin("b", "cat")
	tr.Begin("c", "cat") // dropped, buffer full
	assert.Equal(t, 2, tr.Count())
}

func TestTracerClear(t *testing.T) {
	tr := New(4)
	tr.Begin("a", "cat")
	tr.Clear()
	assert.Equal(t, 0, tr.Count())
	tr.Begin("b", "cat")
	assert.Equal(t, 1, tr.Count())
}

func TestTracerWriteJSONShape(t *testing.T) {
	tr := New(4)
	tr.Begin("work", "cpu")
	tr.End("work", "cpu")
	tr.Instant("mark", "cpu", ScopeGlobal)

	var buf strings.Builder
	require.NoError(t, tr.WriteJSON(&buf))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &decoded))
	require.Len(t, decoded, 3)

	assert.Equal(t, "work", decoded[0]["name"])
	assert.Equal(t, "B", decoded[0]["ph"])
	assert.NotContains(t, decoded[0], "s")

	assert.Equal(t, "E", decoded[1]["ph"])

	assert.Equal(t, "i", decoded[2]["ph"])
	assert.Equal(t, "g", decoded[2]["s"])
}

type countingObserver struct {
	mu    sync.Mutex
	count int
}

func (o *countingObserver) RecordTracerEvent() {
	o.mu.Lock()
	o.count++
	o.mu.Unlock()
}

func TestTracerNotifiesObserverOnEveryAppend(t *testing.T) {
	obs := &countingObserver{}
	tr := New(2)
	tr.SetObserver(obs)

	tr.Begin("a", "cat")
	tr.Begin("b", "cat")
	tr.Begin("c", "cat") // dropped, buffer full, observer still notified

	assert.Equal(t, 2, tr.Count())
	obs.mu.Lock()
	assert.Equal(t, 3, obs.count)
	obs.mu.Unlock()
}

// TestTracerConcreteScenarioThreeThreads covers spec.md §8 scenario 6: three
// goroutines interleave begin/end/instant events; each must be assigned a
// distinct, stable tid and per-goroutine timestamps must be non-decreasing.
func TestTracerConcreteScenarioThreeThreads(t *testing.T) {
	tr := New(300)
	var wg sync.WaitGroup
	wg.Add(3)
	for g := 0; g < 3; g++ {
		go func(n int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				tr.Begin("task", "flow")
				tr.Instant("tick", "flow", ScopeThread)
				tr.End("task", "flow")
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 180, tr.Count())

	var buf strings.Builder
	require.NoError(t, tr.WriteJSON(&buf))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(buf.String()), &decoded))
	require.Len(t, decoded, 180)

	byTID := map[float64][]float64{}
	seen := map[float64]bool{}
	for _, ev := range decoded {
		tidVal := ev["tid"].(float64)
		seen[tidVal] = true
		byTID[tidVal] = append(byTID[tidVal], ev["ts"].(float64))
	}
	assert.Equal(t, 3, len(seen))

	for _, timestamps := range byTID {
		for i := 1; i < len(timestamps); i++ {
			assert.GreaterOrEqual(t, timestamps[i], timestamps[i-1])
		}
	}
}
