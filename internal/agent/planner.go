package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalnine/verifierbench/internal/gateway"
)

// Plan is a decomposed goal.
type Plan struct {
	Task      TaskSpec
	Checklist Checklist
	Exchange  *Exchange
}

type planResponse struct {
	Task      string   `json:"task"`
	Checklist []string `json:"checklist"`
}

type Planner struct {
	gw   gateway.Gateway
	opts gateway.Options
	role Role[string, Plan]
}

func NewPlanner(gw gateway.Gateway, opts gateway.Options) *Planner {
	return &Planner{
		gw:   gw,
		opts: opts,
		role: Role[string, Plan]{
			Name:   "planner",
			System: plannerSystem,
			Build:  func(goal string) string { return fmt.Sprintf(plannerUser, goal) },
			Parse:  parsePlan,
			JSON:   true,
		},
	}
}

// Plan turns a goal into one search task and its checklist. Gateway errors
// come back unchanged; anything that cannot be read as a task with at least
// one checklist item is ErrPlanParse. The returned Plan carries the exchange
// whenever the model answered.
func (p *Planner) Plan(ctx context.Context, goal string) (*Plan, error) {
	plan, ex, err := p.role.Call(ctx, p.gw, p.opts, goal)
	if ex == nil {
		return nil, err
	}
	plan.Exchange = ex
	return &plan, err
}

func parsePlan(_ string, response string) (Plan, error) {
	var resp planResponse
	if err := decodeJSON(response, planSchema, &resp); err != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrPlanParse, err)
	}
	task := strings.TrimSpace(resp.Task)
	if task == "" {
		return Plan{}, fmt.Errorf("%w: empty task", ErrPlanParse)
	}
	var items Checklist
	for _, item := range resp.Checklist {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return Plan{}, fmt.Errorf("%w: checklist has no items", ErrPlanParse)
	}
	return Plan{
		Task:      TaskSpec{Description: task, ToolHint: ToolSearch},
		Checklist: items,
	}, nil
}
