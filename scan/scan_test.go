package scan

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/colorfulnotion/dexinline/corpus"
	"github.com/colorfulnotion/dexinline/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func loadSample(t *testing.T) *corpus.Corpus {
	t.Helper()
	c, err := corpus.Load("../corpus/testdata/sample.json")
	require.NoError(t, err)
	return c
}

func find(t *testing.T, r *Report, method string) Record {
	t.Helper()
	for _, rec := range r.Records {
		if rec.Method == method {
			return rec
		}
	}
	t.Fatalf("no record for %s", method)
	return Record{}
}

func TestRun(t *testing.T) {
	c := loadSample(t)
	report, err := New(c, WithWorkers(4)).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Records, len(c.Methods()))
	for i, m := range c.Methods() {
		assert.Equal(t, m.String(), report.Records[i].Method, "records keep corpus order")
	}

	getX := find(t, report, "Lcom/example/Point;.getX()I")
	assert.Equal(t, Record{
		DexFile:   "app.dex",
		MethodIdx: 1,
		Method:    "Lcom/example/Point;.getX()I",
		Inlinable: true,
		Opcode:    "iget",
		Detail:    "iget word field@0 offset=8 volatile=false static=false object=0 src=0 return+1=0",
	}, getX)

	sum := find(t, report, "Lcom/example/Point;.sum(II)I")
	assert.False(t, sum.Inlinable)
	assert.Equal(t, "S2_UnsupportedOpcode", sum.Reason)
	assert.Empty(t, sum.Opcode)

	base := find(t, report, "Llib/Base;.<init>(I)V")
	assert.Equal(t, "lib.dex", base.DexFile)
	assert.Equal(t, "constructor field@0=arg1", base.Detail)

	s := report.Summary()
	assert.Equal(t, 24, s.Methods)
	assert.Equal(t, 15, s.Inlinable)
	assert.Zero(t, s.Cached)
	assert.Equal(t, map[string]int{
		"constructor":    5,
		"iget":           3,
		"iput":           2,
		"non-wide-const": 3,
		"return-arg":     1,
		"nop":            1,
	}, s.ByOpcode)
	assert.Len(t, s.ByReason, 9)
	assert.Equal(t, 1, s.ByReason["C12_IPutCapacity"])
	assert.Equal(t, "constructor", SortedKeys(s.ByOpcode)[0])
}

func TestRunDeterministic(t *testing.T) {
	c := loadSample(t)
	serial, err := New(c, WithWorkers(1)).Run(context.Background())
	require.NoError(t, err)
	parallel, err := New(c, WithWorkers(0)).Run(context.Background())
	require.NoError(t, err)
	a, err := serial.JSON()
	require.NoError(t, err)
	b, err := parallel.JSON()
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))

	var decoded Report
	require.NoError(t, json.Unmarshal(a, &decoded))
	assert.Equal(t, serial.Fingerprint, decoded.Fingerprint)
	assert.Len(t, decoded.Records, 24)
}

func TestRunWithCache(t *testing.T) {
	c := loadSample(t)
	cache, err := storage.NewMemoryResultCache()
	require.NoError(t, err)
	defer cache.Close()

	first, err := New(c, WithCache(cache)).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, first.Summary().Cached)
	n, err := cache.Len()
	require.NoError(t, err)
	assert.Equal(t, 24, n)

	second, err := New(c, WithCache(cache)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 24, second.Summary().Cached)
	for i := range first.Records {
		want := first.Records[i]
		want.Cached = true
		assert.Equal(t, want, second.Records[i])
	}
	hits, _ := cache.Stats()
	assert.Equal(t, uint64(24), hits)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(loadSample(t)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	_, err := New(loadSample(t), WithTracerProvider(tp), WithWorkers(2)).Run(context.Background())
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 25)
	var root sdktrace.ReadOnlySpan
	for _, s := range spans {
		if s.Name() == "scan.Run" {
			root = s
		}
	}
	require.NotNil(t, root)
	for _, s := range spans {
		if s.Name() == "scan.analyse" {
			assert.Equal(t, root.SpanContext().SpanID(), s.Parent().SpanID())
		}
	}
}

func TestCodeStats(t *testing.T) {
	stats := CodeStats(loadSample(t))
	assert.Positive(t, stats.InstructionCount)
	assert.GreaterOrEqual(t, stats.CodeUnits, stats.InstructionCount)
	total := 0
	for _, n := range stats.OpcodeDistribution {
		total += n
	}
	assert.Equal(t, stats.InstructionCount, total)
}
