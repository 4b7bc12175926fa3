package conformance

import (
	"context"
	"fmt"
	"time"

	"github.com/mcpconform/mcpconform/pkg/duration"
	"github.com/mcpconform/mcpconform/pkg/jsonutil"
	"github.com/mcpconform/mcpconform/pkg/protocol"
	"github.com/mcpconform/mcpconform/pkg/scoring"
)

// Operation states as they appear on the wire. Deliberately local: the
// suite judges what the peer says, not what our own tracker would say.
const (
	opSubmitted = "submitted"
	opRunning   = "running"
	opCompleted = "completed"
	opFailed    = "failed"
	opCancelled = "cancelled"
)

// Sleep durations for the async probes, in milliseconds. Long enough
// that a blocking peer is unmistakable, short enough to keep a full run
// in the tens of seconds.
const (
	asyncProbeSleepMs  = 1500
	asyncCancelSleepMs = 5000
	asyncQuickSleepMs  = 50
	asyncBusySleepMs   = 2000
)

// AsyncSuite exercises the async tool-call extension: submit, poll,
// terminal stability, and cancellation. Every case needs a revision that
// supports the extension; most additionally need the sleep probe tool to
// hold an operation open on demand.
func AsyncSuite() []TestCase {
	return []TestCase{
		{
			Name:     "async-submit-returns-id",
			Category: CategoryAsync,
			Level:    scoring.LevelMust,
			Requires: requiresAsyncSleep,
			Run:      checkAsyncSubmit,
		},
		{
			Name:     "async-poll-running",
			Category: CategoryAsync,
			Level:    scoring.LevelShould,
			Requires: requiresAsyncSleep,
			Run:      checkAsyncPollRunning,
		},
		{
			Name:     "async-poll-completed",
			Category: CategoryAsync,
			Level:    scoring.LevelMust,
			Requires: requiresAsyncSleep,
			Run:      checkAsyncPollCompleted,
		},
		{
			Name:     "async-terminal-poll-stable",
			Category: CategoryAsync,
			Level:    scoring.LevelMust,
			Requires: requiresAsyncSleep,
			Run:      checkAsyncTerminalStable,
		},
		{
			Name:     "async-cancel-running",
			Category: CategoryAsync,
			Level:    scoring.LevelMust,
			Requires: requiresAsyncSleep,
			Run:      checkAsyncCancelRunning,
		},
		{
			Name:     "async-cancel-terminal-noop",
			Category: CategoryAsync,
			Level:    scoring.LevelMust,
			Requires: requiresAsyncSleep,
			Run:      checkAsyncCancelTerminal,
		},
		{
			Name:     "async-unknown-operation",
			Category: CategoryAsync,
			Level:    scoring.LevelMust,
			Requires: requiresAsyncExtension,
			Run:      checkAsyncUnknownOperation,
		},
		{
			Name:     "async-unrelated-request",
			Category: CategoryAsync,
			Level:    scoring.LevelMay,
			Requires: requiresAsyncSleep,
			Run:      checkAsyncUnrelatedRequest,
		},
	}
}

func requiresAsyncExtension(env *Env) (bool, string) {
	if !env.Adapter.SupportsAsyncTools() {
		return false, fmt.Sprintf("revision %s has no async tool extension", env.Adapter.Version())
	}
	return true, ""
}

func requiresAsyncSleep(env *Env) (bool, string) {
	if ok, reason := requiresAsyncExtension(env); !ok {
		return false, reason
	}
	if ok, reason := requiresToolsCapability(env); !ok {
		return false, reason
	}
	if !env.HasTool("sleep") {
		return false, "peer does not list a sleep tool"
	}
	return true, ""
}

// submitSleep starts an async sleep and returns the operation handle.
func submitSleep(ctx context.Context, env *Env, ms int) (*protocol.AsyncCallResult, error) {
	params := protocol.CallToolParams{
		Name:      "sleep",
		Arguments: []byte(fmt.Sprintf(`{"ms":%d}`, ms)),
	}
	resp, err := env.Call(ctx, protocol.MethodToolsCallAsync, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tools/call-async answered with error: [%d] %s", resp.Error.Code, resp.Error.Message)
	}
	res, derr := decodeResult[protocol.AsyncCallResult](resp)
	if derr != nil {
		return nil, fmt.Errorf("tools/call-async result does not decode: %v", derr)
	}
	if res.OperationID == "" {
		return nil, fmt.Errorf("tools/call-async returned no operation id")
	}
	return res, nil
}

// pollOperation fetches one status snapshot for an operation.
func pollOperation(ctx context.Context, env *Env, id string) (*protocol.OperationStatus, *protocol.Response, error) {
	resp, err := env.Call(ctx, protocol.MethodToolsResult, protocol.OperationParams{OperationID: id})
	if err != nil {
		return nil, nil, err
	}
	if resp.Error != nil {
		return nil, resp, fmt.Errorf("tools/result answered with error: [%d] %s", resp.Error.Code, resp.Error.Message)
	}
	st, derr := decodeResult[protocol.OperationStatus](resp)
	if derr != nil {
		return nil, resp, fmt.Errorf("tools/result does not decode: %v", derr)
	}
	return st, resp, nil
}

func isTerminalStatus(s string) bool {
	return s == opCompleted || s == opFailed || s == opCancelled
}

// waitTerminal polls until the operation settles. The case deadline
// bounds the wait.
func waitTerminal(ctx context.Context, env *Env, id string) (*protocol.OperationStatus, error) {
	for {
		st, _, err := pollOperation(ctx, env, id)
		if err != nil {
			return nil, err
		}
		if isTerminalStatus(st.Status) {
			return st, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(duration.PollInterval):
		}
	}
}

// cancelOperation asks the peer to cancel; used both as a probe and to
// clean up operations a case left running.
func cancelOperation(ctx context.Context, env *Env, id string) (*protocol.OperationStatus, error) {
	resp, err := env.Call(ctx, protocol.MethodToolsCancel, protocol.OperationParams{OperationID: id})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("tools/cancel answered with error: [%d] %s", resp.Error.Code, resp.Error.Message)
	}
	st, derr := decodeResult[protocol.OperationStatus](resp)
	if derr != nil {
		return nil, fmt.Errorf("tools/cancel result does not decode: %v", derr)
	}
	return st, nil
}

func checkAsyncSubmit(ctx context.Context, env *Env) error {
	start := time.Now()
	res, err := submitSleep(ctx, env, asyncProbeSleepMs)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}
	defer cancelOperation(ctx, env, res.OperationID)

	if elapsed >= asyncProbeSleepMs*time.Millisecond {
		return fmt.Errorf("call-async blocked for %s, the full duration of a %dms tool", elapsed.Round(time.Millisecond), asyncProbeSleepMs)
	}
	if res.Status != opSubmitted && res.Status != opRunning {
		return fmt.Errorf("call-async reported status %q immediately, want %q or %q", res.Status, opSubmitted, opRunning)
	}
	env.Detail("operation %s acknowledged as %q in %s", res.OperationID, res.Status, elapsed.Round(time.Millisecond))
	return nil
}

func checkAsyncPollRunning(ctx context.Context, env *Env) error {
	res, err := submitSleep(ctx, env, asyncProbeSleepMs)
	if err != nil {
		return err
	}
	defer cancelOperation(ctx, env, res.OperationID)

	st, _, err := pollOperation(ctx, env, res.OperationID)
	if err != nil {
		return err
	}
	switch st.Status {
	case opSubmitted, opRunning:
		return nil
	case opCompleted:
		// Legal but worth noting: the peer finished a 1.5s sleep before
		// we could poll once.
		env.Detail("operation completed before the first poll")
		return nil
	default:
		return fmt.Errorf("first poll reported status %q for a freshly submitted operation", st.Status)
	}
}

func checkAsyncPollCompleted(ctx context.Context, env *Env) error {
	const ms = 500
	start := time.Now()
	res, err := submitSleep(ctx, env, ms)
	if err != nil {
		return err
	}
	st, err := waitTerminal(ctx, env, res.OperationID)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)
	if st.Status != opCompleted {
		return fmt.Errorf("operation settled as %q, want %q", st.Status, opCompleted)
	}
	if st.Result == nil {
		return fmt.Errorf("completed operation carries no result payload")
	}
	if elapsed < (ms-50)*time.Millisecond {
		return fmt.Errorf("a %dms sleep completed after only %s", ms, elapsed.Round(time.Millisecond))
	}
	return nil
}

// checkAsyncTerminalStable polls a settled operation twice more and
// demands the same answer both times.
func checkAsyncTerminalStable(ctx context.Context, env *Env) error {
	res, err := submitSleep(ctx, env, asyncQuickSleepMs)
	if err != nil {
		return err
	}
	if _, err := waitTerminal(ctx, env, res.OperationID); err != nil {
		return err
	}

	_, first, err := pollOperation(ctx, env, res.OperationID)
	if err != nil {
		return err
	}
	_, second, err := pollOperation(ctx, env, res.OperationID)
	if err != nil {
		return err
	}
	if !jsonutil.Equal(first.Result, second.Result) {
		return fmt.Errorf("two polls of a terminal operation disagreed")
	}
	return nil
}

func checkAsyncCancelRunning(ctx context.Context, env *Env) error {
	res, err := submitSleep(ctx, env, asyncCancelSleepMs)
	if err != nil {
		return err
	}
	st, err := cancelOperation(ctx, env, res.OperationID)
	if err != nil {
		return err
	}
	if st.Status != opCancelled {
		return fmt.Errorf("cancel of a running operation reported %q, want %q", st.Status, opCancelled)
	}
	again, _, err := pollOperation(ctx, env, res.OperationID)
	if err != nil {
		return err
	}
	if again.Status != opCancelled {
		return fmt.Errorf("operation reported %q after a confirmed cancel", again.Status)
	}
	return nil
}

// checkAsyncCancelTerminal verifies cancel of a finished operation is a
// no-op that reports the state that won.
func checkAsyncCancelTerminal(ctx context.Context, env *Env) error {
	res, err := submitSleep(ctx, env, asyncQuickSleepMs)
	if err != nil {
		return err
	}
	st, err := waitTerminal(ctx, env, res.OperationID)
	if err != nil {
		return err
	}
	if st.Status != opCompleted {
		return fmt.Errorf("probe operation settled as %q, want %q", st.Status, opCompleted)
	}
	after, err := cancelOperation(ctx, env, res.OperationID)
	if err != nil {
		return err
	}
	if after.Status != opCompleted {
		return fmt.Errorf("cancel flipped a completed operation to %q", after.Status)
	}
	return nil
}

func checkAsyncUnknownOperation(ctx context.Context, env *Env) error {
	resp, err := env.Call(ctx, protocol.MethodToolsResult, protocol.OperationParams{OperationID: "op_ffffffffffffffff"})
	if err != nil {
		return err
	}
	if resp.Error == nil {
		return fmt.Errorf("peer reported status for an operation it never issued")
	}
	return nil
}

// checkAsyncUnrelatedRequest submits a long operation and verifies the
// peer still serves other traffic while it runs.
func checkAsyncUnrelatedRequest(ctx context.Context, env *Env) error {
	start := time.Now()
	res, err := submitSleep(ctx, env, asyncBusySleepMs)
	if err != nil {
		return err
	}
	defer cancelOperation(ctx, env, res.OperationID)

	for _, method := range []string{protocol.MethodPing, protocol.MethodToolsList} {
		resp, cerr := env.Call(ctx, method, nil)
		if cerr != nil {
			return cerr
		}
		if resp.Error != nil {
			return fmt.Errorf("%s answered with error while an operation ran: [%d] %s", method, resp.Error.Code, resp.Error.Message)
		}
	}
	if elapsed := time.Since(start); elapsed >= asyncBusySleepMs*time.Millisecond {
		return fmt.Errorf("unrelated requests stalled %s behind a %dms operation", elapsed.Round(time.Millisecond), asyncBusySleepMs)
	}
	return nil
}
