package generator

// =============================================================================
// GENERATION PIPELINE
// =============================================================================
//
// spec (seed or file) -> schedule -> bit maps -> module set -> commit
//
// Every stage before commit is pure. The module set is rendered fully into
// memory and only then handed to the sink, so a failure in any stage leaves
// no partial artifact behind. Requests in a batch share only the read-only
// spec.
// =============================================================================

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/odogen/internal/artifact"
	"github.com/robert-at-pretension-io/odogen/internal/bitperm"
	"github.com/robert-at-pretension-io/odogen/internal/cipher"
	"github.com/robert-at-pretension-io/odogen/internal/config"
	"github.com/robert-at-pretension-io/odogen/internal/schedule"
	"github.com/robert-at-pretension-io/odogen/internal/validator"
	"github.com/robert-at-pretension-io/odogen/internal/verilog"
)

// ErrInvalidPrefix is returned for prefixes that would not form Verilog
// identifiers.
var ErrInvalidPrefix = errors.New("generator: prefix must be a Verilog identifier prefix")

var prefixPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidatePrefix accepts the empty prefix and any identifier prefix.
func ValidatePrefix(prefix string) error {
	if !prefixPattern.MatchString(prefix) {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	return nil
}

// Generator runs generation requests against one configuration.
type Generator struct {
	// Configuration (spec file, output paths, timing)
	Config *config.Config

	// Structured log sink; never the artifact stream
	Log zerolog.Logger

	// Stdout receives artifacts when no output path is set
	Stdout io.Writer

	// Timing records stage durations; nil disables it
	Timing *artifact.Recorder

	// Optional spec source override (for tests)
	specLoader func(seed uint32) (*cipher.Spec, error)
}

// Request is one (seed, throughput, prefix) generation.
type Request struct {
	Seed       uint32
	Throughput int
	Prefix     string

	// Output is the artifact path; empty or "-" writes to Stdout.
	Output string

	// Manifest, when set, receives the JSON manifest.
	Manifest string
}

// Result describes a committed artifact.
type Result struct {
	Request  Request
	Set      *verilog.ModuleSet
	Digest   artifact.Digest
	Manifest *artifact.Manifest
}

// New creates a Generator writing artifacts to stdout by default.
func New(cfg *config.Config, log zerolog.Logger) *Generator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Generator{
		Config: cfg,
		Log:    log,
		Stdout: os.Stdout,
	}
}

// LoadSpec returns the cipher spec for seed: the configured spec file when
// one is set (checked against the CUE contract, then structurally), the
// seed-derived spec otherwise.
func (g *Generator) LoadSpec(seed uint32) (*cipher.Spec, error) {
	start := time.Now()
	spec, err := g.loadSpec(seed)
	g.Timing.Since("derive", 0, start, err)
	if err != nil {
		return nil, err
	}
	g.Log.Debug().
		Int("digest_bits", spec.DigestBits).
		Int("rounds", spec.Rounds).
		Str("spec_file", g.Config.SpecFile).
		Uint32("seed", seed).
		Msg("cipher spec ready")
	return spec, nil
}

func (g *Generator) loadSpec(seed uint32) (*cipher.Spec, error) {
	if g.specLoader != nil {
		return g.specLoader(seed)
	}
	if g.Config.SpecFile == "" {
		return cipher.Derive(seed), nil
	}

	data, err := os.ReadFile(g.Config.SpecFile)
	if err != nil {
		return nil, fmt.Errorf("reading cipher spec: %w", err)
	}
	v, err := validator.NewSpecValidator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateJSON(data); err != nil {
		return nil, fmt.Errorf("%s: %w", g.Config.SpecFile, err)
	}
	spec, err := cipher.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", g.Config.SpecFile, err)
	}
	return spec, nil
}

// Run loads the spec and generates one artifact.
func (g *Generator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if err := ValidatePrefix(req.Prefix); err != nil {
		return nil, err
	}
	spec, err := g.LoadSpec(req.Seed)
	if err != nil {
		return nil, err
	}
	res, err := g.Generate(ctx, spec, req)
	g.Timing.Since("total", req.Throughput, start, err)
	return res, err
}

// Generate builds, renders and commits the module set for spec. Nothing
// reaches the output before every stage has succeeded.
func (g *Generator) Generate(ctx context.Context, spec *cipher.Spec, req Request) (*Result, error) {
	if err := ValidatePrefix(req.Prefix); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	log := g.Log.With().Int("throughput", req.Throughput).Logger()

	stage := time.Now()
	params, err := schedule.Compute(spec.Rounds, req.Throughput)
	g.Timing.Since("schedule", req.Throughput, stage, err)
	if err != nil {
		return nil, err
	}
	log.Info().
		Int("unrolling", params.Unrolling).
		Int("extra_delay", params.ExtraDelay).
		Int("periods", params.Periods).
		Int("period_bits", params.PeriodBits).
		Int("latency", params.Latency).
		Msg("schedule")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stage = time.Now()
	maps, err := bitperm.ResolveSpec(spec)
	g.Timing.Since("resolve", req.Throughput, stage, err)
	if err != nil {
		return nil, err
	}
	log.Debug().Int("permutations", len(maps)).Int("bits", spec.DigestBits).Msg("bit maps resolved")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stage = time.Now()
	set, err := verilog.Assemble(spec, params, maps, req.Prefix)
	var data []byte
	if err == nil {
		data = set.Bytes()
	}
	g.Timing.Since("emit", req.Throughput, stage, err)
	if err != nil {
		return nil, err
	}
	log.Info().Int("modules", len(set.Modules)).Int("bytes", len(data)).Msg("modules emitted")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := req.Output
	if artifact.ToStdout(path) {
		path = ""
	}
	res := &Result{Request: req, Set: set, Digest: artifact.DigestOf(path, data)}

	stage = time.Now()
	res.Manifest, err = g.commit(req, path, data, set, res.Digest)
	g.Timing.Since("commit", req.Throughput, stage, err)
	if err != nil {
		return nil, err
	}
	log.Info().Str("output", outputName(path)).Str("sha256", res.Digest.SHA256).Msg("artifact committed")
	return res, nil
}

// commit publishes the artifact and, when requested, its manifest. The
// manifest is checked and staged before the artifact is touched; if it
// cannot be put in place afterwards the artifact is removed again.
func (g *Generator) commit(req Request, path string, data []byte, set *verilog.ModuleSet, digest artifact.Digest) (*artifact.Manifest, error) {
	if req.Manifest == "" {
		return nil, artifact.Commit(path, data, g.Stdout)
	}

	m, err := g.buildManifest(req, set, digest)
	if err != nil {
		return nil, err
	}
	manifest, err := artifact.StageJSON(req.Manifest, m)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	defer manifest.Discard()

	if path == "" {
		if err := artifact.Commit(path, data, g.Stdout); err != nil {
			return nil, err
		}
		if err := manifest.Commit(); err != nil {
			return nil, fmt.Errorf("manifest: %w", err)
		}
		return m, nil
	}

	out, err := artifact.Stage(path, data)
	if err != nil {
		return nil, err
	}
	defer out.Discard()
	if err := out.Commit(); err != nil {
		return nil, err
	}
	if err := manifest.Commit(); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return m, nil
}

func (g *Generator) buildManifest(req Request, set *verilog.ModuleSet, digest artifact.Digest) (*artifact.Manifest, error) {
	m := artifact.NewManifest(set, digest)
	if g.Config.SpecFile != "" {
		m.SpecFile = g.Config.SpecFile
	} else {
		seed := req.Seed
		m.Seed = &seed
	}

	v, err := validator.NewManifestValidator()
	if err != nil {
		return nil, err
	}
	if err := v.Validate(m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return m, nil
}

// BatchPath is where RunBatch commits the artifact for one throughput.
func BatchPath(dir, prefix string, throughput int) string {
	return filepath.Join(dir, fmt.Sprintf("%sodo_t%d.v", prefix, throughput))
}

// BatchManifestPath is the manifest written next to a batch artifact.
func BatchManifestPath(dir, prefix string, throughput int) string {
	return filepath.Join(dir, fmt.Sprintf("%sodo_t%d.manifest.json", prefix, throughput))
}

// RunBatch generates one artifact per throughput concurrently, all from
// the same spec, each committed atomically under dir. The first failure
// cancels the remaining requests; artifacts already committed stay.
func (g *Generator) RunBatch(ctx context.Context, seed uint32, throughputs []int, prefix, dir string, manifests bool) ([]*Result, error) {
	start := time.Now()
	if len(throughputs) == 0 {
		return nil, errors.New("generator: no throughputs given")
	}
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	seen := make(map[int]bool, len(throughputs))
	for _, t := range throughputs {
		if seen[t] {
			return nil, fmt.Errorf("generator: throughput %d listed twice", t)
		}
		seen[t] = true
	}

	spec, err := g.LoadSpec(seed)
	if err != nil {
		return nil, err
	}
	// Reject bad throughputs before any artifact is written.
	for _, t := range throughputs {
		if _, err := schedule.Compute(spec.Rounds, t); err != nil {
			return nil, err
		}
	}

	results := make([]*Result, len(throughputs))
	eg, egCtx := errgroup.WithContext(ctx)
	if g.Config.Workers > 0 {
		eg.SetLimit(g.Config.Workers)
	}
	for i, t := range throughputs {
		req := Request{
			Seed:       seed,
			Throughput: t,
			Prefix:     prefix,
			Output:     BatchPath(dir, prefix, t),
		}
		if manifests {
			req.Manifest = BatchManifestPath(dir, prefix, t)
		}
		eg.Go(func() error {
			res, err := g.Generate(egCtx, spec, req)
			if err != nil {
				return fmt.Errorf("throughput %d: %w", req.Throughput, err)
			}
			results[i] = res
			return nil
		})
	}
	err = eg.Wait()
	g.Timing.Since("total", 0, start, err)
	if err != nil {
		return nil, err
	}
	g.Log.Info().Int("artifacts", len(results)).Str("dir", dir).Msg("batch complete")
	return results, nil
}

func outputName(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}
