// Package notice picks the single operator notice for the client's current state.
package notice

import (
	"fmt"
	"time"

	"github.com/verte-zerg/taskcount/internal/model"
)

// Kind identifies which condition produced a notice.
type Kind int

const (
	KindNone Kind = iota
	KindClientUnreachable
	KindSuspendedByUser
	KindRunningOut
	KindNoNewReports
	KindComputeError
	KindAllWell
	KindNoTasks
	KindResumeSuggested
	KindClientSuspended
	KindProjectSuspended
	KindStalled
	KindUnknown
)

// Input is what the rules look at.
type Input struct {
	State       model.RunState
	NoNewStreak int
	Interval    model.Period
}

// Rule pairs a condition with the notice it raises.
type Rule struct {
	When func(Input) bool
	Kind Kind
}

// RunningRules apply while at least one task is executing, highest priority first.
var RunningRules = []Rule{
	{func(in Input) bool { return in.State.SuspendedByUser > 0 }, KindSuspendedByUser},
	{func(in Input) bool { return in.State.Running >= in.State.Total-1 }, KindRunningOut},
	{func(in Input) bool { return in.NoNewStreak > 0 }, KindNoNewReports},
	{func(in Input) bool { return in.State.Errored > 0 }, KindComputeError},
	{func(Input) bool { return true }, KindAllWell},
}

// IdleRules apply while nothing is executing, highest priority first.
var IdleRules = []Rule{
	{func(in Input) bool { return in.State.Total == 0 }, KindNoTasks},
	{func(in Input) bool { return in.State.SuspendedByUser > 0 }, KindResumeSuggested},
	{func(in Input) bool { return in.State.ClientSuspendReason != "" }, KindClientSuspended},
	{func(in Input) bool { return in.State.ProjectSuspendedByUser }, KindProjectSuspended},
	{func(in Input) bool {
		s := in.State
		return s.Uploading+s.Uploaded+s.Aborted == s.Total
	}, KindStalled},
	{func(in Input) bool { return in.State.Errored > 0 }, KindComputeError},
	{func(Input) bool { return true }, KindUnknown},
}

// Resolve returns the kind of the first rule whose condition holds.
func Resolve(rules []Rule, in Input) Kind {
	for _, r := range rules {
		if r.When(in) {
			return r.Kind
		}
	}
	return KindNone
}

// Classify picks the table for the state and resolves it.
func Classify(in Input) Kind {
	if in.State.Unreachable {
		return KindClientUnreachable
	}
	if in.State.Running > 0 {
		return Resolve(RunningRules, in)
	}
	return Resolve(IdleRules, in)
}

// Select resolves the notice for in and renders its text.
func Select(in Input, at time.Time) model.NoticeRecord {
	kind := Classify(in)
	return model.NoticeRecord{Kind: int(kind), Text: Text(kind, in), At: at}
}

// Text renders the operator message for kind.
func Text(kind Kind, in Input) string {
	s := in.State
	switch kind {
	case KindClientUnreachable:
		if s.Err != "" {
			return "BOINC client is not running or cannot be reached: " + s.Err
		}
		return "BOINC client is not running or cannot be reached"
	case KindSuspendedByUser:
		return fmt.Sprintf("%d task(s) suspended by user; check BOINC Manager", s.SuspendedByUser)
	case KindRunningOut:
		if s.NoNewWork {
			return "BOINC will soon run out of tasks; the project is set to not request more work"
		}
		return "BOINC will soon run out of tasks; check project and BOINC Manager"
	case KindNoNewReports:
		return fmt.Sprintf("No tasks reported in the past %d interval(s) of %s", in.NoNewStreak, in.Interval)
	case KindComputeError:
		return fmt.Sprintf("%d task(s) ended with a computation error; check BOINC Manager", s.Errored)
	case KindAllWell:
		return "All is well"
	case KindNoTasks:
		return "No tasks to run; check the project in BOINC Manager"
	case KindResumeSuggested:
		return fmt.Sprintf("No tasks running; %d task(s) suspended by user, resume them in BOINC Manager", s.SuspendedByUser)
	case KindClientSuspended:
		return "BOINC client is suspended: " + s.ClientSuspendReason
	case KindProjectSuspended:
		return "No tasks running; the project is suspended by user"
	case KindStalled:
		return "No tasks running; all tasks are stalled in upload, check the project"
	case KindUnknown:
		return "No tasks running, reason unknown; check BOINC Manager"
	default:
		return ""
	}
}

// Urgent reports whether kind should be escalated beyond the status display.
func Urgent(kind Kind) bool {
	switch kind {
	case KindNone, KindAllWell:
		return false
	default:
		return true
	}
}
