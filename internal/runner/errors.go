package runner

import (
	"context"
	"errors"

	"github.com/signalnine/verifierbench/internal/agent"
	"github.com/signalnine/verifierbench/internal/gateway"
	"github.com/signalnine/verifierbench/internal/search"
)

// Error kinds recorded next to the error text and used as metric labels.
const (
	KindModelUnavailable  = "model_unavailable"
	KindModelTimeout      = "model_timeout"
	KindModelRefusal      = "model_refusal"
	KindSearchUnavailable = "search_unavailable"
	KindPlanParse         = "plan_parse"
	KindExecution         = "execution"
	KindVerdictParse      = "verdict_parse"
	KindCanceled          = "canceled"
	KindOther             = "other"
)

// ErrorKind classifies err. Gateway failures outrank agent failures when
// several are joined.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, gateway.ErrModelTimeout):
		return KindModelTimeout
	case errors.Is(err, gateway.ErrModelUnavailable):
		return KindModelUnavailable
	case errors.Is(err, gateway.ErrModelRefusal):
		return KindModelRefusal
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, agent.ErrPlanParse):
		return KindPlanParse
	case errors.Is(err, agent.ErrVerdictParse):
		return KindVerdictParse
	case errors.Is(err, search.ErrSearchUnavailable):
		return KindSearchUnavailable
	case errors.Is(err, agent.ErrExecution):
		return KindExecution
	default:
		return KindOther
	}
}
