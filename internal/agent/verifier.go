package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalnine/verifierbench/internal/gateway"
)

// Judgment is a verdict together with the exchange that produced it.
type Judgment struct {
	Verdict  Verdict
	Exchange *Exchange
}

type verifyInput struct {
	Checklist Checklist
	Output    string
}

type judgmentResponse struct {
	Judgments []struct {
		Index     int    `json:"index"`
		Satisfied bool   `json:"satisfied"`
		Reason    string `json:"reason"`
	} `json:"judgments"`
	Rationale string `json:"rationale"`
}

// Verifier is the independent judge. It sees only the checklist and the
// executor's raw output.
type Verifier struct {
	gw   gateway.Gateway
	opts gateway.Options
	role Role[verifyInput, Verdict]
}

func NewVerifier(gw gateway.Gateway, opts gateway.Options) *Verifier {
	return &Verifier{
		gw:   gw,
		opts: opts,
		role: Role[verifyInput, Verdict]{
			Name:   "verifier",
			System: verifierSystem,
			Build: func(in verifyInput) string {
				return fmt.Sprintf(verifierUser, in.Output, numbered(in.Checklist), judgmentFormat)
			},
			Parse: func(in verifyInput, response string) (Verdict, error) {
				return parseVerdict(in.Checklist, response)
			},
			JSON: true,
		},
	}
}

// Verify judges output against every checklist item. A PASS needs every item
// satisfied. If the answer cannot be read as exactly one judgment per item
// the verdict is FAIL and the error wraps ErrVerdictParse. Gateway errors
// return a nil Judgment.
func (v *Verifier) Verify(ctx context.Context, checklist Checklist, output RawOutput) (*Judgment, error) {
	return v.VerifyText(ctx, checklist, output.Text())
}

// VerifyText judges an already rendered raw output, as stored in a results
// file.
func (v *Verifier) VerifyText(ctx context.Context, checklist Checklist, output string) (*Judgment, error) {
	if len(checklist) == 0 {
		return &Judgment{Verdict: failVerdict("empty checklist")}, fmt.Errorf("%w: empty checklist", ErrVerdictParse)
	}
	verdict, ex, err := v.role.Call(ctx, v.gw, v.opts, verifyInput{Checklist: checklist, Output: output})
	if ex == nil {
		return nil, err
	}
	return &Judgment{Verdict: verdict, Exchange: ex}, err
}

// parseVerdict applies the closed-world reading shared by the verifier and
// self-critique: missing, duplicate or out-of-range items make the whole
// verdict FAIL.
func parseVerdict(checklist Checklist, response string) (Verdict, error) {
	var resp judgmentResponse
	if err := decodeJSON(response, judgmentSchema, &resp); err != nil {
		return failVerdict("unreadable judgment"), fmt.Errorf("%w: %v", ErrVerdictParse, err)
	}
	if len(resp.Judgments) != len(checklist) {
		return failVerdict("judgment count mismatch"),
			fmt.Errorf("%w: got %d judgments for %d items", ErrVerdictParse, len(resp.Judgments), len(checklist))
	}

	items := make([]ItemJudgment, len(checklist))
	seen := make([]bool, len(checklist))
	for _, j := range resp.Judgments {
		i := j.Index - 1
		if i < 0 || i >= len(checklist) {
			return failVerdict("judgment index out of range"), fmt.Errorf("%w: index %d out of range", ErrVerdictParse, j.Index)
		}
		if seen[i] {
			return failVerdict("duplicate judgment"), fmt.Errorf("%w: index %d judged twice", ErrVerdictParse, j.Index)
		}
		seen[i] = true
		items[i] = ItemJudgment{Item: checklist[i], Satisfied: j.Satisfied, Reason: strings.TrimSpace(j.Reason)}
	}

	outcome := Pass
	for _, item := range items {
		if !item.Satisfied {
			outcome = Fail
			break
		}
	}
	return Verdict{Outcome: outcome, Items: items, Rationale: strings.TrimSpace(resp.Rationale)}, nil
}

// Unverified is the No-Verifier decision: PASS unless execution failed.
func Unverified(execErr error) Verdict {
	if execErr != nil {
		return Verdict{Outcome: Fail, Rationale: "execution failed: " + execErr.Error()}
	}
	return Verdict{Outcome: Pass, Rationale: "executor completed without error"}
}
