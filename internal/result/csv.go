package result

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var columns = []string{
	"id", "run_at", "goal_id", "goal", "variant", "backend", "model", "task",
	"checklist", "raw_output", "verdict", "judgments", "rationale", "stages",
	"latency_ms", "input_tokens", "output_tokens", "error", "error_kind",
}

// CSVLog appends one row per record and flushes after every row. Reading a
// field back turns \r\n into \n; raw outputs are stored already normalized.
type CSVLog struct {
	mu sync.Mutex
	f  *os.File
	w  *csv.Writer
}

// OpenCSV opens path for appending, writing the header if the file is new
// or empty.
func OpenCSV(path string) (*CSVLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening results: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat results: %w", err)
	}
	l := &CSVLog{f: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := l.write(columns); err != nil {
			f.Close()
			return nil, err
		}
	}
	return l, nil
}

func (l *CSVLog) Append(rec RunRecord) error {
	row, err := encodeRow(&rec)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.write(row)
}

func (l *CSVLog) write(row []string) error {
	if err := l.w.Write(row); err != nil {
		return fmt.Errorf("writing row: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("flushing row: %w", err)
	}
	return nil
}

func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	return errors.Join(l.w.Error(), l.f.Close())
}

func encodeRow(r *RunRecord) ([]string, error) {
	checklist, err := json.Marshal(orEmpty(r.Checklist))
	if err != nil {
		return nil, fmt.Errorf("encoding checklist: %w", err)
	}
	judgments, err := json.Marshal(orEmpty(r.Judgments))
	if err != nil {
		return nil, fmt.Errorf("encoding judgments: %w", err)
	}
	return []string{
		r.ID,
		r.RunAt.UTC().Format(time.RFC3339),
		strconv.Itoa(r.GoalID),
		r.Goal,
		r.Variant,
		r.Backend,
		r.Model,
		r.Task,
		string(checklist),
		r.RawOutput,
		r.Verdict,
		string(judgments),
		r.Rationale,
		strings.Join(r.Stages, ">"),
		strconv.FormatInt(r.LatencyMS, 10),
		strconv.Itoa(r.InputTokens),
		strconv.Itoa(r.OutputTokens),
		r.Error,
		r.ErrorKind,
	}, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// ReadCSV loads every record from a results file written by CSVLog.
func ReadCSV(path string) ([]RunRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening results: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[name] = i
	}
	for _, name := range columns {
		if _, ok := idx[name]; !ok {
			return nil, fmt.Errorf("results header missing column %q", name)
		}
	}

	var records []RunRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		rec, err := decodeRow(row, idx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func decodeRow(row []string, idx map[string]int) (RunRecord, error) {
	get := func(name string) string { return row[idx[name]] }
	var rec RunRecord
	var err error

	rec.ID = get("id")
	if rec.RunAt, err = time.Parse(time.RFC3339, get("run_at")); err != nil {
		return rec, fmt.Errorf("run_at: %w", err)
	}
	if rec.GoalID, err = strconv.Atoi(get("goal_id")); err != nil {
		return rec, fmt.Errorf("goal_id: %w", err)
	}
	rec.Goal = get("goal")
	rec.Variant = get("variant")
	rec.Backend = get("backend")
	rec.Model = get("model")
	rec.Task = get("task")
	if err := json.Unmarshal([]byte(get("checklist")), &rec.Checklist); err != nil {
		return rec, fmt.Errorf("checklist: %w", err)
	}
	rec.RawOutput = get("raw_output")
	rec.Verdict = get("verdict")
	if err := json.Unmarshal([]byte(get("judgments")), &rec.Judgments); err != nil {
		return rec, fmt.Errorf("judgments: %w", err)
	}
	rec.Rationale = get("rationale")
	if s := get("stages"); s != "" {
		rec.Stages = strings.Split(s, ">")
	}
	if rec.LatencyMS, err = strconv.ParseInt(get("latency_ms"), 10, 64); err != nil {
		return rec, fmt.Errorf("latency_ms: %w", err)
	}
	if rec.InputTokens, err = strconv.Atoi(get("input_tokens")); err != nil {
		return rec, fmt.Errorf("input_tokens: %w", err)
	}
	if rec.OutputTokens, err = strconv.Atoi(get("output_tokens")); err != nil {
		return rec, fmt.Errorf("output_tokens: %w", err)
	}
	rec.Error = get("error")
	rec.ErrorKind = get("error_kind")
	return rec, nil
}
