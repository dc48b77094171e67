package boinc

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/taskcount/internal/model"
)

// ElapsedTag selects the elapsed-time lines of reported tasks.
const ElapsedTag = "elapsed time:"

// ElapsedTimes reads lines such as "   elapsed time: 1234.5678 sec".
// Lines that do not parse are skipped.
func ElapsedTimes(lines []string) []model.WorkUnitTime {
	out := make([]model.WorkUnitTime, 0, len(lines))
	for _, line := range lines {
		_, value, ok := strings.Cut(line, ElapsedTag)
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "sec"))
		secs, err := strconv.ParseFloat(value, 64)
		if err != nil {
			continue
		}
		out = append(out, model.WorkUnitTime(secs))
	}
	return out
}

// ReportedTimes polls the client for reported task times.
func ReportedTimes(ctx context.Context, c Client) ([]model.WorkUnitTime, error) {
	lines, err := c.Reported(ctx, ElapsedTag)
	if err != nil {
		return nil, err
	}
	return ElapsedTimes(lines), nil
}

type task struct {
	state     string
	active    string
	suspended bool
}

// CountTasks fills the task census of st from --get_tasks output.
func CountTasks(lines []string, st *model.RunState) {
	var tasks []task
	for _, line := range lines {
		key, value, ok := field(line)
		if !ok {
			continue
		}
		if key == "name" {
			tasks = append(tasks, task{})
			continue
		}
		if len(tasks) == 0 {
			continue
		}
		cur := &tasks[len(tasks)-1]
		switch key {
		case "state":
			cur.state = value
		case "active_task_state":
			cur.active = value
		case "suspended via GUI":
			cur.suspended = value == "yes"
		}
	}

	st.Total = len(tasks)
	for _, t := range tasks {
		switch {
		case t.suspended:
			st.SuspendedByUser++
		case t.active == "EXECUTING":
			st.Running++
		}
		switch t.state {
		case "uploading":
			st.Uploading++
		case "uploaded":
			st.Uploaded++
		case "aborted":
			st.Aborted++
		case "compute error":
			st.Errored++
		}
	}
}

// ClientSuspendReason returns why the client is suspended, or "" when it is not.
func ClientSuspendReason(lines []string) string {
	for _, line := range lines {
		key, value, ok := field(line)
		if !ok {
			continue
		}
		if key == "suspend reason" || key == "suspended" {
			if value == "" || value == "no" || value == "not suspended" {
				continue
			}
			return value
		}
	}
	return ""
}

// ReadProjects fills project flags of st from --get_project_status output.
func ReadProjects(lines []string, st *model.RunState) {
	for _, line := range lines {
		key, value, ok := field(line)
		if !ok {
			continue
		}
		switch key {
		case "master URL":
			st.ProjectURLs = append(st.ProjectURLs, value)
		case "suspended via GUI":
			if value == "yes" {
				st.ProjectSuspendedByUser = true
			}
		case "don't request more work":
			if value == "yes" {
				st.NoNewWork = true
			}
		}
	}
}

// ReadRunState gathers the client's current condition. Any failed query
// leaves the census unknown, so the state is marked unreachable and the
// error is returned alongside it.
func ReadRunState(ctx context.Context, c Client, now time.Time) (model.RunState, error) {
	st := model.RunState{RefreshedAt: now}
	fail := func(err error) (model.RunState, error) {
		msg := err.Error()
		if errors.Is(err, ErrUnreachable) {
			msg = ErrUnreachable.Error()
		}
		return model.RunState{RefreshedAt: now, Unreachable: true, Err: msg}, err
	}

	tasks, err := c.Tasks(ctx, "")
	if err != nil {
		return fail(err)
	}
	CountTasks(tasks, &st)

	status, err := c.SimpleStatus(ctx)
	if err != nil {
		return fail(err)
	}
	st.ClientSuspendReason = ClientSuspendReason(status)

	projects, err := c.ProjectStatus(ctx, "")
	if err != nil {
		return fail(err)
	}
	ReadProjects(projects, &st)
	return st, nil
}

// field splits "   key: value" lines.
func field(line string) (string, string, bool) {
	key, value, ok := strings.Cut(line, ":")
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), true
}
