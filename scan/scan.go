// Package scan runs the inline analysis over every method of a corpus,
// in parallel and through an optional result cache.
package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"

	"github.com/colorfulnotion/dexinline/corpus"
	"github.com/colorfulnotion/dexinline/dex"
	"github.com/colorfulnotion/dexinline/dexerrors"
	"github.com/colorfulnotion/dexinline/inline"
	"github.com/colorfulnotion/dexinline/log"
	"github.com/colorfulnotion/dexinline/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/colorfulnotion/dexinline/scan"

// Record is the decision for one method.
type Record struct {
	DexFile   string `json:"dex_file"`
	MethodIdx uint32 `json:"method_idx"`
	Method    string `json:"method"`
	Inlinable bool   `json:"inlinable"`
	Opcode    string `json:"opcode,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Cached    bool   `json:"-"`
}

// Report lists the records in corpus order.
type Report struct {
	Fingerprint string   `json:"fingerprint"`
	Records     []Record `json:"methods"`
}

func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Summary counts inline kinds and rejection reasons.
type Summary struct {
	Methods   int
	Inlinable int
	Cached    int
	ByOpcode  map[string]int
	ByReason  map[string]int
}

func (r *Report) Summary() Summary {
	s := Summary{ByOpcode: map[string]int{}, ByReason: map[string]int{}}
	for _, rec := range r.Records {
		s.Methods++
		if rec.Cached {
			s.Cached++
		}
		if rec.Inlinable {
			s.Inlinable++
			s.ByOpcode[rec.Opcode]++
		} else {
			s.ByReason[rec.Reason]++
		}
	}
	return s
}

// SortedKeys returns the keys of a histogram, largest count first.
func SortedKeys(h map[string]int) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if h[keys[i]] != h[keys[j]] {
			return h[keys[i]] > h[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// CodeStats aggregates instruction statistics over every method body.
func CodeStats(c *corpus.Corpus) *dex.CodeStats {
	total := dex.Analyze(nil)
	for _, m := range c.Methods() {
		if code := m.CodeItem(); code != nil {
			total.Merge(dex.Analyze(code))
		}
	}
	return total
}

type Scanner struct {
	corpus   *corpus.Corpus
	analyser *inline.Analyser
	cache    *storage.ResultCache
	workers  int
	tracer   trace.Tracer
}

type Option func(*Scanner)

// WithCache stores outcomes in cache and reuses them on later runs.
func WithCache(cache *storage.ResultCache) Option {
	return func(s *Scanner) { s.cache = cache }
}

// WithWorkers bounds the number of methods analysed at once. Values below
// one select GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(s *Scanner) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}
		s.workers = n
	}
}

// WithTracerProvider records spans through tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scanner) { s.tracer = tp.Tracer(tracerName) }
}

func New(c *corpus.Corpus, opts ...Option) *Scanner {
	s := &Scanner{
		corpus:   c,
		analyser: inline.NewAnalyser(c),
		workers:  runtime.GOMAXPROCS(0),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run analyses every corpus method. It fails only when ctx is cancelled;
// cache errors are logged and the method is analysed afresh.
func (s *Scanner) Run(ctx context.Context) (*Report, error) {
	fp := s.corpus.Fingerprint()
	ctx, span := s.tracer.Start(ctx, "scan.Run", trace.WithAttributes(
		attribute.String("corpus.fingerprint", fmt.Sprintf("%x", fp[:8])),
		attribute.Int("scan.workers", s.workers),
	))
	defer span.End()

	methods := s.corpus.Methods()
	records := make([]Record, len(methods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, m := range methods {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			records[i] = s.analyse(gctx, fp, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("scan: %w", err)
	}

	report := &Report{Fingerprint: fmt.Sprintf("%x", fp), Records: records}
	sum := report.Summary()
	span.SetAttributes(attribute.Int("scan.methods", sum.Methods), attribute.Int("scan.inlinable", sum.Inlinable))
	log.Info(log.ScanMonitoring, "scan finished", "methods", sum.Methods, "inlinable", sum.Inlinable, "cached", sum.Cached)
	return report, nil
}

func (s *Scanner) analyse(ctx context.Context, fp [32]byte, m *corpus.Method) Record {
	_, span := s.tracer.Start(ctx, "scan.analyse", trace.WithAttributes(attribute.String("method", m.String())))
	defer span.End()

	rec := Record{
		DexFile:   m.Class().DexFile().Location(),
		MethodIdx: m.Index(),
		Method:    m.String(),
	}
	var key [32]byte
	if s.cache != nil {
		key = storage.MethodKey(fp, rec.DexFile, m.Index(), m.IsStatic(), m.CodeItem())
		out, found, err := s.cache.Get(key)
		if err != nil {
			log.Warn(log.ScanMonitoring, "cache read failed", "method", rec.Method, "err", err)
		} else if found {
			rec.Cached = true
			span.SetAttributes(attribute.Bool("cached", true))
			return fill(rec, out)
		}
	}

	var out storage.Outcome
	err := s.analyser.ExplainMethod(m, &out.Method)
	out.Inlinable, out.Reason = err == nil, err
	if s.cache != nil {
		if err := s.cache.Put(key, out); err != nil {
			log.Warn(log.ScanMonitoring, "cache write failed", "method", rec.Method, "err", err)
		}
	}
	span.SetAttributes(attribute.Bool("inlinable", out.Inlinable))
	return fill(rec, out)
}

func fill(rec Record, out storage.Outcome) Record {
	rec.Inlinable = out.Inlinable
	if out.Inlinable {
		rec.Opcode = out.Method.Opcode.String()
		rec.Detail = out.Method.String()
	} else {
		rec.Reason = dexerrors.GetErrorCodeWithName(out.Reason)
	}
	return rec
}
