package runner

import (
	"context"
	"time"

	"github.com/signalnine/verifierbench/internal/agent"
	"github.com/signalnine/verifierbench/internal/result"
)

// RejudgedPrefix marks the variant of a record produced by Rejudge.
const RejudgedPrefix = "rejudged:"

// Rejudge runs the decoupled verifier over a stored record's raw output.
// The returned record keeps the source goal, task and checklist, names the
// judging backend, and carries the variant as RejudgedPrefix plus the source
// variant. ok is false for records that never got a checklist.
func Rejudge(ctx context.Context, v *agent.Verifier, backend, model string, src *result.RunRecord) (rec *result.RunRecord, ok bool, err error) {
	if len(src.Checklist) == 0 {
		return nil, false, nil
	}
	rec = result.NewRecord(src.GoalID, src.Goal, RejudgedPrefix+src.Variant, backend, model)
	rec.Task = src.Task
	rec.Checklist = src.Checklist
	rec.RawOutput = src.RawOutput

	start := time.Now()
	judgment, err := stage(ctx, "rejudge", func(ctx context.Context) (*agent.Judgment, error) {
		return v.VerifyText(ctx, src.Checklist, src.RawOutput)
	})
	rec.LatencyMS = time.Since(start).Milliseconds()
	if judgment != nil {
		rec.InputTokens, rec.OutputTokens = agent.Tokens(judgment.Exchange)
		setVerdict(rec, judgment.Verdict)
		rec.Stages = []string{StageVerified, StageDone}
	}
	if err != nil {
		rec.Error = err.Error()
		rec.ErrorKind = ErrorKind(err)
	}
	return rec, true, err
}
