package conformance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/mcpconform/mcpconform/pkg/adapter"
	"github.com/mcpconform/mcpconform/pkg/defaults"
	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/output/dispatcher"
	"github.com/mcpconform/mcpconform/pkg/output/events"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/scoring"
	"github.com/mcpconform/mcpconform/pkg/transport"
)

// Runner executes cases sequentially against one peer. It owns the
// handshake, the per-case deadlines, and the abort rules; everything it
// learns flows out as events through the dispatcher and comes back as a
// RunResult.
//
// A Runner drives exactly one run: the transport underneath cannot be
// re-initialized.
type Runner struct {
	cfg        Config
	transport  transport.Transport
	adapter    adapter.Adapter
	dispatcher *dispatcher.Dispatcher
	limiter    *rate.Limiter
}

// NewRunner creates a runner for one (transport, adapter) pair. The
// dispatcher may be nil when no output is wanted.
func NewRunner(t transport.Transport, a adapter.Adapter, d *dispatcher.Dispatcher, cfg Config) *Runner {
	cfg = cfg.withDefaults()
	r := &Runner{cfg: cfg, transport: t, adapter: a, dispatcher: d}
	if cfg.ThrottleMs > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Duration(cfg.ThrottleMs)*time.Millisecond), 1)
	}
	return r
}

// RunResult is everything a caller needs after a run: the raw results,
// the weighted score, the summary writers were fed, and the exit code
// the process should end with.
type RunResult struct {
	RunID      string
	Results    []TestResult
	Compliance scoring.Compliance
	Summary    *events.SummaryEvent
	ExitCode   int
	ExitReason string
}

// Run performs the handshake and executes the cases in order. The error
// is non-nil only when a transport failure aborted the run; validation
// failures are results, not errors. Partial results still produce a
// summary.
func (r *Runner) Run(ctx context.Context, cases []TestCase) (*RunResult, error) {
	runID := uuid.NewString()
	started := time.Now()

	env := &Env{
		Transport: r.transport,
		Adapter:   r.adapter,
		Kind:      r.cfg.Kind,
		Target:    r.cfg.Target,
		limiter:   r.limiter,
	}
	selected := r.selectCases(cases)

	fatal := r.handshake(ctx, env)
	r.emitStart(ctx, runID, env, selected)

	if fatal != nil {
		r.emitError(ctx, runID, "", "transport", fatal.Error(), true)
		res := r.finish(ctx, runID, started, env, nil, fatal, "failed to start")
		return res, fatal
	}

	r.snapshotTools(ctx, env)

	results := make([]TestResult, 0, len(selected))
	var stats events.StatsInfo
	var abortReason string
	var fatalErr error

	for i, tc := range selected {
		if abortReason != "" {
			results = append(results, TestResult{
				Name:     tc.Name,
				Category: tc.Category,
				Level:    tc.Level,
				Outcome:  scoring.OutcomeSkipped,
				Message:  "run aborted: " + abortReason,
			})
			r.emitResult(ctx, runID, tc, results[len(results)-1], env, nil)
			stats.Skipped++
			continue
		}

		if reason, skip := r.skipReason(tc, env); skip {
			results = append(results, TestResult{
				Name:     tc.Name,
				Category: tc.Category,
				Level:    tc.Level,
				Outcome:  scoring.OutcomeSkipped,
				Message:  reason,
			})
			r.emitResult(ctx, runID, tc, results[len(results)-1], env, nil)
			stats.Skipped++
			continue
		}

		tr, caseErr := r.runCase(ctx, tc, env)
		results = append(results, tr)
		r.emitResult(ctx, runID, tc, tr, env, env.takeEvidence())
		r.tally(&stats, tr.Outcome)
		r.emitProgress(ctx, runID, tc.Category, i+1, len(selected), started, stats)

		switch {
		case transport.IsFatal(caseErr):
			abortReason = caseErr.Error()
			fatalErr = caseErr
			r.emitError(ctx, runID, tc.Name, "transport", abortReason, true)
			log.Printf("[runner] ABORT  case=%s  %v", tc.Name, caseErr)
		case tr.Outcome == scoring.OutcomeTimedOut && (tc.Category == CategoryCore || tc.Critical):
			abortReason = fmt.Sprintf("%s timed out", tc.Name)
			r.emitError(ctx, runID, tc.Name, "timeout", tr.Message, true)
			log.Printf("[runner] ABORT  case=%s  timed out", tc.Name)
		case ctx.Err() != nil:
			abortReason = "run cancelled"
		}
	}

	exitReason := "completed"
	if abortReason != "" {
		exitReason = "aborted: " + abortReason
	}

	res := r.finish(ctx, runID, started, env, results, fatalErr, exitReason)
	return res, fatalErr
}

// ---------------------------------------------------------------------------
// Handshake
// ---------------------------------------------------------------------------

// handshake performs initialize, version negotiation, and the
// initialized notification, capturing every step into env. Only
// transport-fatal failures return an error; a peer that answers the
// handshake badly is evidence for the lifecycle cases, not a reason to
// stop.
func (r *Runner) handshake(ctx context.Context, env *Env) error {
	info := r.cfg.ClientInfo
	if info.Name == "" {
		info = protocol.ClientInfo{
			Name:    defaults.ToolName,
			Version: defaults.Version,
			Title:   defaults.ToolNameDisplay,
		}
	}
	params := r.adapter.BuildInitializeParams(info)
	env.Offered = params.ProtocolVersion

	hctx, cancel := context.WithTimeout(ctx, duration.Initialize)
	defer cancel()

	raw, err := r.transport.Initialize(hctx, params)
	if err != nil {
		env.InitErr = err
		if transport.IsFatal(err) {
			return err
		}
		log.Printf("[runner] initialize failed: %v", err)
		return nil
	}
	env.RawInit = raw

	var res protocol.InitializeResult
	if uerr := jsonutil.Unmarshal(raw, &res); uerr != nil {
		env.InitErr = fmt.Errorf("initialize result does not decode: %v", uerr)
		return nil
	}
	env.Init = &res

	negotiated, nerr := adapter.Negotiate(env.Offered, res.ProtocolVersion)
	if nerr != nil {
		env.NegotiateErr = nerr
		log.Printf("[runner] negotiation failed: %v", nerr)
	} else {
		env.Negotiated = negotiated
		if negotiated != env.Adapter.Version() {
			// The peer downgraded us to an older revision it speaks; the
			// rest of the run follows its rules.
			if down, derr := adapter.For(negotiated); derr == nil {
				env.Adapter = down
			}
		}
		if env.Adapter.RequiresVersionHeader() {
			r.transport.SetProtocolVersion(negotiated)
		}
	}

	n, err := protocol.NewNotification(protocol.NotifInitialized, nil)
	if err != nil {
		env.NotifyErr = err
		return nil
	}
	if nerr := r.transport.Notify(hctx, n); nerr != nil {
		env.NotifyErr = nerr
		if transport.IsFatal(nerr) {
			return nerr
		}
	}

	server := ""
	if env.Init != nil {
		server = env.Init.ServerInfo.Name
	}
	log.Printf("[runner] handshake complete  offered=%s  negotiated=%s  server=%q", env.Offered, env.Negotiated, server)
	return nil
}

// snapshotTools captures the peer's descriptor list so Requires
// predicates can gate on it. Best effort: a failure leaves env.Tools nil
// and the tools cases report it themselves.
func (r *Runner) snapshotTools(ctx context.Context, env *Env) {
	if env.Init == nil || env.Init.Capabilities.Tools == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, r.cfg.ToolTimeout)
	defer cancel()

	var collected []protocol.Tool
	cursor := ""
	for page := 0; page < 16; page++ {
		var params any
		if cursor != "" {
			params = protocol.ListToolsParams{Cursor: cursor}
		}
		resp, err := env.Call(sctx, protocol.MethodToolsList, params)
		if err != nil || resp.Error != nil {
			log.Printf("[runner] tools snapshot failed: %v", err)
			return
		}
		res, derr := decodeResult[protocol.ListToolsResult](resp)
		if derr != nil {
			log.Printf("[runner] tools snapshot failed: %v", derr)
			return
		}
		collected = append(collected, res.Tools...)
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}
	env.resetEvidence()
	env.Tools = collected
}

// ---------------------------------------------------------------------------
// Case execution
// ---------------------------------------------------------------------------

func (r *Runner) selectCases(cases []TestCase) []TestCase {
	if len(r.cfg.Categories) == 0 {
		return cases
	}
	keep := make(map[string]bool, len(r.cfg.Categories))
	for _, c := range r.cfg.Categories {
		keep[strings.ToLower(strings.TrimSpace(c))] = true
	}
	out := make([]TestCase, 0, len(cases))
	for _, tc := range cases {
		if keep[tc.Category] {
			out = append(out, tc)
		}
	}
	return out
}

func (r *Runner) skipReason(tc TestCase, env *Env) (string, bool) {
	for _, name := range r.cfg.Skip {
		if name == tc.Name {
			return "skipped by configuration", true
		}
	}
	if r.cfg.SkipLifecycle && hasTag(tc, TagLifecycle) {
		return "lifecycle checks disabled", true
	}
	if tc.Requires != nil {
		if ok, reason := tc.Requires(env); !ok {
			if reason == "" {
				reason = "requirement not met"
			}
			return reason, true
		}
	}
	return "", false
}

func (r *Runner) caseTimeout(tc TestCase) time.Duration {
	if tc.Timeout > 0 {
		return tc.Timeout
	}
	switch tc.Category {
	case CategoryTools:
		return r.cfg.ToolTimeout
	case CategoryAsync:
		return r.cfg.AsyncTimeout
	case CategorySpec:
		return r.cfg.SpecTimeout
	default:
		return r.cfg.CoreTimeout
	}
}

// runCase executes one case under its deadline and classifies the
// verdict. The raw error comes back too, so the caller can spot fatal
// transport failures.
func (r *Runner) runCase(ctx context.Context, tc TestCase, env *Env) (TestResult, error) {
	timeout := r.caseTimeout(tc)
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env.resetEvidence()
	start := time.Now()
	err := runGuarded(cctx, tc, env)
	elapsed := time.Since(start)

	tr := TestResult{
		Name:       tc.Name,
		Category:   tc.Category,
		Level:      tc.Level,
		DurationMs: float64(elapsed.Microseconds()) / 1000.0,
	}

	var harness *HarnessError
	switch {
	case err == nil:
		tr.Outcome = scoring.OutcomePassed
	case transport.IsFatal(err):
		tr.Outcome = scoring.OutcomeErrored
		tr.Message = err.Error()
	case transport.IsTimeout(err):
		tr.Outcome = scoring.OutcomeTimedOut
		tr.Message = err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		tr.Outcome = scoring.OutcomeTimedOut
		tr.Message = fmt.Sprintf("no verdict within %s", timeout)
	case errors.Is(err, context.Canceled):
		tr.Outcome = scoring.OutcomeSkipped
		tr.Message = "run cancelled"
	case errors.As(err, &harness):
		tr.Outcome = scoring.OutcomeErrored
		tr.Message = err.Error()
	default:
		tr.Outcome = scoring.OutcomeFailed
		tr.Message = err.Error()
	}
	return tr, err
}

func runGuarded(ctx context.Context, tc TestCase, env *Env) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &HarnessError{Err: fmt.Errorf("panic in %s: %v", tc.Name, rec)}
		}
	}()
	return tc.Run(ctx, env)
}

func (r *Runner) tally(stats *events.StatsInfo, outcome scoring.Outcome) {
	switch outcome {
	case scoring.OutcomePassed:
		stats.Passed++
	case scoring.OutcomeFailed:
		stats.Failed++
	case scoring.OutcomeSkipped:
		stats.Skipped++
	case scoring.OutcomeTimedOut:
		stats.Timeouts++
	case scoring.OutcomeErrored:
		stats.Errors++
	}
}

// ---------------------------------------------------------------------------
// Summary and exit
// ---------------------------------------------------------------------------

// finish aggregates the results, scores them, emits the summary and
// complete events, and settles the exit code.
func (r *Runner) finish(ctx context.Context, runID string, started time.Time, env *Env, results []TestResult, fatal error, exitReason string) *RunResult {
	completed := time.Now()

	totals := events.SummaryTotals{Checks: len(results)}
	byCategory := make(map[string]events.CategoryStats)
	byLevel := make(map[string]events.CategoryStats)
	var failures []events.FailureInfo
	inputs := make([]scoring.Input, 0, len(results))

	for _, tr := range results {
		switch tr.Outcome {
		case scoring.OutcomePassed:
			totals.Passed++
		case scoring.OutcomeFailed:
			totals.Failed++
		case scoring.OutcomeSkipped:
			totals.Skipped++
		case scoring.OutcomeTimedOut:
			totals.Timeouts++
		case scoring.OutcomeErrored:
			totals.Errors++
		}
		inputs = append(inputs, scoring.Input{Level: tr.Level, Outcome: tr.Outcome})

		addStat(byCategory, tr.Category, tr.Outcome)
		addStat(byLevel, strings.ToUpper(string(tr.Level)), tr.Outcome)

		if tr.Outcome.Counted() && tr.Outcome != scoring.OutcomePassed {
			failures = append(failures, events.FailureInfo{
				Name:     tr.Name,
				Category: tr.Category,
				Level:    tr.Level,
				Message:  tr.Message,
			})
		}
	}

	comp := scoring.Calculate(inputs, env.Negotiated)
	exitCode := r.exitCode(results, fatal)

	target := events.SummaryTarget{
		Endpoint:  r.cfg.Target,
		Transport: r.cfg.Kind,
		Revision:  env.Negotiated,
	}
	if env.Init != nil {
		target.ServerName = env.Init.ServerInfo.Name
	}

	summary := &events.SummaryEvent{
		BaseEvent:  baseEvent(events.EventTypeSummary, runID),
		Version:    defaults.Version,
		Target:     target,
		Totals:     totals,
		Compliance: comp,
		Breakdown:  events.BreakdownInfo{ByCategory: byCategory, ByLevel: byLevel},
		Failures:   failures,
		Timing: events.SummaryTiming{
			StartedAt:   started,
			CompletedAt: completed,
			DurationSec: completed.Sub(started).Seconds(),
		},
		ExitCode:   exitCode,
		ExitReason: exitReason,
	}
	r.emit(ctx, summary)
	r.emit(ctx, &events.CompleteEvent{
		BaseEvent:  baseEvent(events.EventTypeComplete, runID),
		Success:    exitCode == defaults.ExitSuccess,
		ExitCode:   exitCode,
		ExitReason: exitReason,
		Summary:    summary,
	})

	log.Printf("[runner] DONE  checks=%d passed=%d failed=%d skipped=%d score=%.1f tier=%q exit=%d",
		totals.Checks, totals.Passed, totals.Failed, totals.Skipped, comp.Score, comp.Tier, exitCode)

	return &RunResult{
		RunID:      runID,
		Results:    results,
		Compliance: comp,
		Summary:    summary,
		ExitCode:   exitCode,
		ExitReason: exitReason,
	}
}

func addStat(m map[string]events.CategoryStats, key string, outcome scoring.Outcome) {
	st := m[key]
	st.Total++
	switch {
	case outcome == scoring.OutcomePassed:
		st.Passed++
	case outcome == scoring.OutcomeSkipped:
		st.Skipped++
	default:
		// Timeouts and harness errors count against the category the
		// same way failures do.
		st.Failed++
	}
	m[key] = st
}

// exitCode implements the exit policy: transport failures dominate, then
// failures at the enforced levels. MUST is always enforced; Strict adds
// SHOULD and MAY.
func (r *Runner) exitCode(results []TestResult, fatal error) int {
	if fatal != nil {
		return defaults.ExitTransportError
	}
	for _, tr := range results {
		if !tr.Outcome.Counted() || tr.Outcome == scoring.OutcomePassed {
			continue
		}
		if r.cfg.Strict || strings.EqualFold(string(tr.Level), string(scoring.LevelMust)) {
			return defaults.ExitNonCompliant
		}
	}
	return defaults.ExitSuccess
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

func baseEvent(t events.EventType, runID string) events.BaseEvent {
	return events.BaseEvent{Type: t, Time: time.Now(), Run: runID}
}

func (r *Runner) emit(ctx context.Context, ev events.Event) {
	if r.dispatcher == nil {
		return
	}
	_ = r.dispatcher.Dispatch(ctx, ev)
}

func (r *Runner) emitStart(ctx context.Context, runID string, env *Env, selected []TestCase) {
	seen := make(map[string]bool)
	var categories []string
	for _, tc := range selected {
		if !seen[tc.Category] {
			seen[tc.Category] = true
			categories = append(categories, tc.Category)
		}
	}

	ev := &events.StartEvent{
		BaseEvent: baseEvent(events.EventTypeStart, runID),
		Target:    r.cfg.Target,
		Transport: r.cfg.Kind,
		Revision:  env.Negotiated,
		Config: events.RunConfig{
			Timeout:    int(r.cfg.ToolTimeout.Seconds()),
			Categories: r.cfg.Categories,
			Strict:     r.cfg.Strict,
			ThrottleMs: r.cfg.ThrottleMs,
		},
		Categories:  categories,
		TotalChecks: len(selected),
	}
	if env.Init != nil {
		ev.ServerName = env.Init.ServerInfo.Name
	}
	r.emit(ctx, ev)
}

func (r *Runner) emitResult(ctx context.Context, runID string, tc TestCase, tr TestResult, env *Env, evidence *events.Evidence) {
	ev := &events.ResultEvent{
		BaseEvent: baseEvent(events.EventTypeResult, runID),
		Check: events.CheckInfo{
			Name:     tc.Name,
			Category: tc.Category,
			Level:    tc.Level,
			Revision: env.Negotiated,
			Tags:     tc.Tags,
		},
		Result: events.ResultInfo{
			Outcome:    tr.Outcome,
			DurationMs: tr.DurationMs,
		},
		Evidence: evidence,
	}
	if tr.Outcome == scoring.OutcomeSkipped {
		ev.Result.SkipReason = tr.Message
	} else {
		ev.Result.Message = tr.Message
	}
	r.emit(ctx, ev)
}

func (r *Runner) emitProgress(ctx context.Context, runID, category string, current, total int, started time.Time, stats events.StatsInfo) {
	pct := 0.0
	if total > 0 {
		pct = float64(current) / float64(total) * 100
	}
	r.emit(ctx, &events.ProgressEvent{
		BaseEvent: baseEvent(events.EventTypeProgress, runID),
		Progress: events.ProgressInfo{
			Category:   category,
			Current:    current,
			Total:      total,
			Percentage: pct,
		},
		Timing: events.TimingInfo{
			ElapsedSec: int64(time.Since(started).Seconds()),
			StartedAt:  started,
		},
		Stats: stats,
	})
}

func (r *Runner) emitError(ctx context.Context, runID, check, errType, message string, fatal bool) {
	r.emit(ctx, &events.ErrorEvent{
		BaseEvent: baseEvent(events.EventTypeError, runID),
		Check:     check,
		ErrorType: errType,
		Message:   message,
		Fatal:     fatal,
	})
}
