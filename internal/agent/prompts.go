package agent

import (
	"fmt"
	"strings"
)

const plannerSystem = `You are a meticulous planner. Convert the user's goal into one concrete task that can be carried out with a single web search, and a checklist of simple, objectively checkable conditions that the search output must satisfy for the task to count as completed. Respond with a JSON object.`

const plannerUser = `Goal: %q

Respond with a JSON object with two keys:
- "task": a string describing the concrete search to perform.
- "checklist": an array of strings with at least one item. Each item must be a factual condition that can be checked by reading the search output alone.`

const executorSystem = `You are an executor agent. You run a web search for a task and report what the search returned. Report only what the results contain. Do not invent facts and do not say whether the task succeeded.`

const executorUser = `Task: %s
Search query: %s

Search results:
%s
Write a concise narrative (at most five sentences) of what these results say about the task.`

const verifierSystem = `You are a scrupulous verifier. You judge, strictly from the executor output you are shown, whether each checklist condition is satisfied. Anything the output does not state counts as not satisfied. Respond with a JSON object.`

const verifierUser = `Executor output:
<<<
%s>>>

Verification checklist:
%s
%s`

const critiqueUser = `Earlier in this session you were given this request:
<<<
%s
>>>

Your output was:
<<<
%s>>>

Now critically evaluate your own work against this checklist:
%s
%s`

const judgmentFormat = `Respond with a JSON object with two keys:
- "judgments": an array with exactly one entry per checklist item, each {"index": <item number>, "satisfied": <true|false>, "reason": "<one line>"}.
- "rationale": a short overall explanation.`

func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item)
	}
	return b.String()
}
