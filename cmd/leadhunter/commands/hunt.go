package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/leadhunter/internal/browser"
	"github.com/jmylchreest/leadhunter/internal/compose"
	"github.com/jmylchreest/leadhunter/internal/delivery"
	"github.com/jmylchreest/leadhunter/internal/history"
	"github.com/jmylchreest/leadhunter/internal/logger"
	"github.com/jmylchreest/leadhunter/internal/output"
	"github.com/jmylchreest/leadhunter/internal/secrets"
	"github.com/jmylchreest/leadhunter/pkg/capture"
	"github.com/jmylchreest/leadhunter/pkg/contact"
	"github.com/jmylchreest/leadhunter/pkg/lead"
	"github.com/jmylchreest/leadhunter/pkg/pipeline"
)

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "Capture listings and discover contact addresses",
	Long: `Hunt searches the listing feed for --niche in --location, reads up to
--limit entries and looks for a contact address on each business website.

Leads are written to stdout, or to --output in the format given by --format
or the file extension (json, jsonl, yaml, csv, xlsx).

With --pitch, a short outreach email is drafted for every lead with an
address. --send delivers the drafts over SMTP; --dry-run prints them instead.`,
	RunE: runHunt,
}

func init() {
	rootCmd.AddCommand(huntCmd)

	flags := huntCmd.Flags()

	flags.StringP("niche", "n", "", "business category to search for (required)")
	flags.StringP("location", "l", "", "city or area (required)")
	flags.Int("limit", 10, "maximum number of leads (1-50)")

	flags.IntP("concurrency", "c", pipeline.DefaultConcurrency, "concurrent website lookups")
	flags.Bool("headless", true, "run the browser without a window")
	flags.String("chrome-path", "", "browser executable (default: search PATH)")
	flags.String("screenshot-dir", "", "save a screenshot here when the feed is blocked")
	flags.Duration("timeout", 8*time.Second, "per-website fetch timeout")
	flags.String("max-body", "2MB", "maximum website body read (e.g. 512KB, 2MB)")

	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "", "output format: json, jsonl, yaml, csv, xlsx")
	flags.Bool("history", false, "record the run in the campaign history")

	flags.String("pitch", "", "draft an email per lead using these instructions")
	flags.Bool("send", false, "send drafted pitches")
	flags.Bool("dry-run", false, "print pitches instead of sending")

	_ = huntCmd.MarkFlagRequired("niche")
	_ = huntCmd.MarkFlagRequired("location")

	_ = viper.BindPFlag("browser.headless", flags.Lookup("headless"))
	_ = viper.BindPFlag("browser.chrome_path", flags.Lookup("chrome-path"))
	_ = viper.BindPFlag("browser.screenshot_dir", flags.Lookup("screenshot-dir"))
	_ = viper.BindPFlag("contact.timeout", flags.Lookup("timeout"))
	_ = viper.BindPFlag("contact.max_body", flags.Lookup("max-body"))
	_ = viper.BindPFlag("concurrency", flags.Lookup("concurrency"))
}

func runHunt(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	niche, _ := cmd.Flags().GetString("niche")
	location, _ := cmd.Flags().GetString("location")
	limit, _ := cmd.Flags().GetInt("limit")
	params := lead.Params{Niche: niche, Location: location, Limit: limit}
	if err := params.Validate(); err != nil {
		return err
	}
	params = params.Normalized()

	instructions, _ := cmd.Flags().GetString("pitch")
	send, _ := cmd.Flags().GetBool("send")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if send && strings.TrimSpace(instructions) == "" {
		return errors.New("--send requires --pitch")
	}

	outPath, _ := cmd.Flags().GetString("output")
	formatFlag, _ := cmd.Flags().GetString("format")
	format, err := resolveFormat(formatFlag, outPath)
	if err != nil {
		return err
	}

	p, err := buildPipeline()
	if err != nil {
		return err
	}

	// Resolve the outreach stack before the browser starts, so a missing
	// credential fails fast.
	var out *outreach
	if strings.TrimSpace(instructions) != "" {
		out, err = newOutreach(instructions, send && !dryRun, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
	}

	var store *history.Store
	if record, _ := cmd.Flags().GetBool("history"); record {
		store, err = history.Open(historyPath(viper.GetViper()))
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
	}

	logger.Info("starting hunt", "query", params.Query(), "limit", params.Limit)
	start := time.Now()

	spin := newSpinner(cmd.ErrOrStderr(), params)
	leads, runErr := p.run(ctx, params, spin)
	spin.Stop()

	var runID string
	if store != nil {
		runID, err = store.RecordRun(context.WithoutCancel(ctx), params, leads, runErr)
		if err != nil {
			logger.Warn("failed to record run", "error", err)
		} else {
			logger.Debug("run recorded", "run_id", runID)
		}
	}
	if runErr != nil {
		logger.Error("hunt failed", "error", runErr)
		return runErr
	}

	if err := writeLeads(outPath, format, leads); err != nil {
		logger.Error("failed to write output", "error", err)
		return err
	}

	summary := pipeline.Summarize(leads)
	logInfo("%s in %s", summary, strings.TrimSpace(humanize.RelTime(start, time.Now(), "", "")))

	if out != nil {
		return out.run(ctx, leads, store, runID)
	}
	return nil
}

type huntPipeline struct {
	pipeline *pipeline.Pipeline
	done     *atomic.Int32
}

func buildPipeline() (*huntPipeline, error) {
	v := viper.GetViper()

	cfg, fp, err := captureSettings(v)
	if err != nil {
		return nil, err
	}

	maxBody, err := parseSize(v.GetString("contact.max_body"))
	if err != nil {
		return nil, err
	}
	logger.Debug("contact settings", "timeout", v.GetDuration("contact.timeout"), "max_body", humanize.Bytes(uint64(maxBody)))

	launcher := browser.NewLauncher(browser.Options{
		Headless:      v.GetBool("browser.headless"),
		ChromePath:    v.GetString("browser.chrome_path"),
		ScreenshotDir: v.GetString("browser.screenshot_dir"),
	})
	capturer := capture.New(launcher, capture.WithConfig(cfg), capture.WithFingerprint(fp))
	extractor := contact.New(contact.Config{
		Timeout:     v.GetDuration("contact.timeout"),
		MaxBodySize: maxBody,
	})

	done := &atomic.Int32{}
	p := pipeline.New(capturer, extractor,
		pipeline.WithConcurrency(v.GetInt("concurrency")),
		pipeline.WithObserver(func(l lead.Lead) {
			done.Add(1)
			logger.Debug("lead checked", "name", l.Name, "contact", l.Contact.Display())
		}),
	)
	return &huntPipeline{pipeline: p, done: done}, nil
}

func (h *huntPipeline) run(ctx context.Context, params lead.Params, spin *spinner.Spinner) ([]lead.Lead, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(250 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				if n := h.done.Load(); n > 0 {
					spin.Lock()
					spin.Suffix = fmt.Sprintf(" Checking websites for %s (%d done)", params.Query(), n)
					spin.Unlock()
				}
			}
		}
	}()
	return h.pipeline.Run(ctx, params)
}

func newSpinner(w io.Writer, params lead.Params) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = fmt.Sprintf(" Scanning %s...", params.Query())
	if !viper.GetBool("quiet") && !viper.GetBool("debug") {
		s.Start()
	}
	return s
}

func writeLeads(path string, format output.Format, leads []lead.Lead) error {
	var dst io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		dst = f
	}

	w, err := output.NewWriter(dst, format)
	if err != nil {
		return err
	}
	if err := w.WriteAll(output.FromLeads(leads)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if path != "" {
		logInfo("wrote %d leads to %s", len(leads), path)
	}
	return nil
}

// outreach drafts and optionally sends pitches.
type outreach struct {
	composer     *compose.Composer
	sender       *delivery.Sender
	instructions string
	preview      io.Writer
}

func newOutreach(instructions string, deliver bool, preview io.Writer) (*outreach, error) {
	v := viper.GetViper()
	lookup := credentials(v, secrets.New())

	cfg, err := composeSettings(v, lookup)
	if err != nil {
		return nil, err
	}
	primary, err := compose.NewProvider(cfg.Provider, cfg)
	if err != nil {
		return nil, err
	}
	providers := []compose.Provider{primary}
	if cfg.Provider != "ollama" && v.GetBool("compose.ollama_fallback") {
		local := compose.DefaultConfig()
		local.Model = compose.DefaultModel("ollama")
		if fallback, err := compose.NewOllamaProvider(local); err == nil {
			providers = append(providers, fallback)
		}
	}
	provider := compose.NewFallback(providers...)
	logger.Debug("composer ready", "provider", provider.Name(), "model", provider.Model())

	var opts []compose.ComposerOption
	if subject := v.GetString("compose.subject"); subject != "" {
		opts = append(opts, compose.WithSubject(subject))
	}
	opts = append(opts, compose.WithGeneration(cfg.MaxTokens, cfg.Temperature))

	o := &outreach{
		composer:     compose.NewComposer(provider, opts...),
		instructions: instructions,
		preview:      preview,
	}
	if deliver {
		dcfg, err := deliverySettings(v, lookup)
		if err != nil {
			return nil, err
		}
		o.sender, err = delivery.NewSender(dcfg)
		if err != nil {
			return nil, err
		}
	}
	return o, nil
}

// run drafts a pitch per lead with an address. Failures are logged per lead
// and counted; only cancellation aborts.
func (o *outreach) run(ctx context.Context, leads []lead.Lead, store *history.Store, runID string) error {
	var drafted, sent, failed int
	for _, l := range leads {
		if l.Email() == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		pitch, err := o.composer.Pitch(ctx, l, o.instructions)
		if err != nil {
			failed++
			logger.Warn("pitch failed", "lead", l.Name, "error", err)
			continue
		}
		drafted++

		var sendErr error
		if o.sender != nil {
			sendErr = o.sender.Send(ctx, l, pitch)
			if sendErr != nil {
				failed++
				logger.Warn("send failed", "lead", l.Name, "to", l.Email(), "error", sendErr)
			} else {
				sent++
				logger.Info("pitch sent", "lead", l.Name, "to", l.Email())
			}
		} else {
			fmt.Fprintf(o.preview, "\nTo: %s\nSubject: %s\n\n%s\n", l.Email(), pitch.Subject, pitch.Body)
		}

		if store != nil && runID != "" && o.sender != nil {
			if err := store.RecordPitch(context.WithoutCancel(ctx), runID, l, pitch, sendErr); err != nil {
				logger.Warn("failed to record pitch", "error", err)
			}
		}
	}
	logInfo("%d pitches drafted, %d sent, %d failed", drafted, sent, failed)
	return nil
}
