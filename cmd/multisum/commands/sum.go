package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/multisum/pkg/chunk"
	"github.com/Sumatoshi-tech/multisum/pkg/config"
	"github.com/Sumatoshi-tech/multisum/pkg/observability"
	"github.com/Sumatoshi-tech/multisum/pkg/report"
	"github.com/Sumatoshi-tech/multisum/pkg/safeconv"
	"github.com/Sumatoshi-tech/multisum/pkg/session"
	"github.com/Sumatoshi-tech/multisum/pkg/version"
)

var (
	// ErrNoInput is returned when neither files nor --text were given.
	ErrNoInput = errors.New("nothing to hash: pass one or more files or --text")
	// ErrInputsFailed is returned when at least one input produced no digests.
	ErrInputsFailed = errors.New("one or more inputs failed")
)

const (
	stdinMarker = "-"
	stdinLabel  = "<stdin>"
	textLabel   = "<text>"

	opSum = "cli.sum"
)

// SumCommand holds configuration for the sum command.
type SumCommand struct {
	root *rootOptions

	text       string
	textSet    bool
	algorithms []string
	chunkSize  string
	window     int
	format     string
	noColor    bool
	progress   bool
}

// NewSumCommand creates the sum command.
func NewSumCommand(root *rootOptions) *cobra.Command {
	sc := &SumCommand{root: root}

	cmd := &cobra.Command{
		Use:   "sum [flags] [FILE...]",
		Short: "Compute digests of files or a text value",
		Long: `Compute MD5, SHA-1 and SHA-256 digests in a single streaming pass.

Files are read in chunks and hashed by all algorithms concurrently. Text given
with --text is normalized to Unicode NFC before hashing; --text - reads it from
stdin. Each input is a separate generation.`,
		RunE: sc.run,
	}

	cmd.Flags().StringVar(&sc.text, "text", "", "Text to hash ('-' reads stdin)")
	cmd.Flags().StringSliceVarP(&sc.algorithms, "algorithms", "a", nil, "Algorithms: md5, sha1, sha256 (default from config)")
	cmd.Flags().StringVar(&sc.chunkSize, "chunk-size", "", "Chunk size, e.g. 64KiB or 1MiB (default from config)")
	cmd.Flags().IntVar(&sc.window, "window", 0, "Chunks in flight ahead of the slowest algorithm (default from config)")
	cmd.Flags().StringVarP(&sc.format, "format", "f", string(report.FormatText), "Output format: text, json, yaml")
	cmd.Flags().BoolVar(&sc.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&sc.progress, "progress", false, "Show progress on stderr")

	return cmd
}

func (sc *SumCommand) run(cmd *cobra.Command, args []string) error {
	sc.textSet = cmd.Flags().Changed("text")

	if len(args) == 0 && !sc.textSet {
		return ErrNoInput
	}

	format, err := report.ParseFormat(sc.format)
	if err != nil {
		return err
	}

	cfg, err := sc.root.load(cmd)
	if err != nil {
		return err
	}

	if err := sc.applyFlags(cmd, cfg); err != nil {
		return err
	}

	sessCfg, err := sessionConfig(cfg)
	if err != nil {
		return err
	}

	providers, err := initObservability(cfg, observability.ModeCLI, false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer shutdownObservability(cmd, providers)

	red, err := observability.NewREDMetrics(providers.Meter)
	if err != nil {
		return err
	}

	pipeline, err := observability.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	start := time.Now()

	defer red.TrackInflight(ctx, opSum)()

	rep, err := sc.hashAll(ctx, cmd, sessCfg, args,
		session.WithLogger(providers.Logger),
		session.WithTracer(providers.Tracer),
		session.WithMetrics(pipeline),
	)

	status := observability.StatusOK
	if err != nil || rep.Failed() {
		status = observability.StatusError
	}

	red.RecordRequest(ctx, opSum, status, time.Since(start))

	if err != nil {
		return err
	}

	renderErr := report.Render(cmd.OutOrStdout(), rep, format, report.Options{Color: !sc.noColor && !color.NoColor})
	if renderErr != nil {
		return fmt.Errorf("render report: %w", renderErr)
	}

	if rep.Failed() {
		return ErrInputsFailed
	}

	return nil
}

func (sc *SumCommand) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("algorithms") {
		cfg.Hashing.Algorithms = sc.algorithms
	}

	if flags.Changed("chunk-size") {
		cfg.Hashing.ChunkSize = sc.chunkSize
	}

	if flags.Changed("window") {
		cfg.Hashing.BufferWindow = sc.window
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate flags: %w", err)
	}

	return nil
}

// sessionConfig converts the validated hashing section to a session.Config.
func sessionConfig(cfg *config.Config) (session.Config, error) {
	algs, err := cfg.Hashing.ParsedAlgorithms()
	if err != nil {
		return session.Config{}, err
	}

	size, err := cfg.Hashing.ChunkSizeBytes()
	if err != nil {
		return session.Config{}, err
	}

	return session.Config{Algorithms: algs, ChunkSize: size, Window: cfg.Hashing.BufferWindow}, nil
}

// hashAll submits every input to one supervisor, one after another.
func (sc *SumCommand) hashAll(
	ctx context.Context, cmd *cobra.Command, cfg session.Config, paths []string, opts ...session.Option,
) (*report.Report, error) {
	rep := report.New(version.Version)

	var bar *progressLine
	if sc.progress {
		bar = &progressLine{w: cmd.ErrOrStderr()}
	}

	runner, err := newRunner(ctx, cfg, bar, opts...)
	if err != nil {
		return nil, err
	}
	defer runner.stop()

	if sc.textSet {
		in, inErr := sc.textInput(cmd.InOrStdin())
		if inErr != nil {
			return nil, inErr
		}

		if err := runner.hash(ctx, rep, in); err != nil {
			return nil, err
		}
	}

	for _, path := range paths {
		fr, openErr := chunk.OpenFile(path)
		if openErr != nil {
			rep.AddFailure(path, session.SourceFile, 0, session.KindIORead, openErr)

			continue
		}

		hashErr := runner.hash(ctx, rep, session.FileInput(fr).WithLabel(path))

		closeErr := fr.Close()

		if hashErr != nil {
			return nil, hashErr
		}

		if closeErr != nil {
			return nil, fmt.Errorf("close %s: %w", path, closeErr)
		}
	}

	return rep, nil
}

func (sc *SumCommand) textInput(stdin io.Reader) (session.Input, error) {
	if sc.text != stdinMarker {
		return session.TextInput(sc.text).WithLabel(textLabel), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return session.Input{}, fmt.Errorf("read stdin: %w", err)
	}

	return session.TextInput(strings.TrimSuffix(string(data), "\n")).WithLabel(stdinLabel), nil
}

// outcome is what one submission produced.
type outcome struct {
	res  session.Result
	kind session.ErrorKind
	err  error
}

// runner feeds inputs through a single long-lived Supervisor.
type runner struct {
	sup     *session.Supervisor
	done    chan outcome
	bar     *progressLine
	stopped chan error
	cancel  context.CancelFunc
}

func newRunner(ctx context.Context, cfg session.Config, bar *progressLine, opts ...session.Option) (*runner, error) {
	r := &runner{
		done:    make(chan outcome, 1),
		bar:     bar,
		stopped: make(chan error, 1),
	}

	obs := session.ObserverFuncs{
		OnProgress: bar.update,
		OnFailed: func(kind session.ErrorKind, err error) {
			r.done <- outcome{kind: kind, err: err}
		},
		OnCompleted: func(res session.Result) {
			r.done <- outcome{res: res}
		},
	}

	sup, err := session.New(cfg, obs, opts...)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)

	r.sup, r.cancel = sup, cancel

	go func() { r.stopped <- sup.Run(runCtx) }()

	return r, nil
}

// hash submits in, waits for its generation and appends the outcome to rep.
func (r *runner) hash(ctx context.Context, rep *report.Report, in session.Input) error {
	r.bar.begin(in.Label, in.Size())
	r.sup.Submit(in)

	select {
	case out := <-r.done:
		r.bar.end()

		if out.err != nil {
			rep.AddFailure(in.Label, in.Source(), in.Size(), out.kind, out.err)

			return nil
		}

		rep.AddResult(out.res)

		return nil

	case <-ctx.Done():
		r.bar.end()

		return fmt.Errorf("sum: %w", ctx.Err())
	}
}

func (r *runner) stop() {
	r.cancel()
	<-r.stopped
}

// progressLine redraws a single stderr line per input. A nil line is inert.
type progressLine struct {
	w     io.Writer
	label string
	size  int64
}

func (p *progressLine) begin(label string, size int64) {
	if p == nil {
		return
	}

	p.label, p.size = label, size
}

func (p *progressLine) update(percent float64) {
	if p == nil {
		return
	}

	done := uint64(float64(safeconv.MustInt64ToUint64(p.size)) * percent / 100)

	fmt.Fprintf(p.w, "\r%s %5.1f%% (%s / %s)", p.label, percent,
		humanize.IBytes(done), humanize.IBytes(safeconv.MustInt64ToUint64(p.size)))
}

func (p *progressLine) end() {
	if p == nil {
		return
	}

	fmt.Fprintln(p.w)
}
