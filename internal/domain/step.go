package domain

import (
	"reflect"
	"time"
)

type Task struct {
	ID              ID
	TaskFormulation *string
	WorkMode        *string
	Notes           *string
	Tools           []string
	Materials       []string
}

func TaskFromMap(v any) (Task, error) {
	d, err := asDoc(v)
	if err != nil {
		return Task{}, err
	}
	if err := d.require("task_formulation"); err != nil {
		return Task{}, err
	}
	r := &reader{d: d}
	t := Task{
		ID:              r.id(),
		TaskFormulation: r.optString("task_formulation"),
		WorkMode:        r.optString("work_mode"),
		Notes:           r.optString("notes"),
		Tools:           r.strings("tools"),
		Materials:       r.strings("materials"),
	}
	return t, r.err
}

func (t Task) ToMap() map[string]any {
	return map[string]any{
		"_id":              t.ID,
		"task_formulation": strOrNil(t.TaskFormulation),
		"work_mode":        strOrNil(t.WorkMode),
		"notes":            strOrNil(t.Notes),
		"tools":            cloneStrings(t.Tools),
		"materials":        cloneStrings(t.Materials),
	}
}

func (t Task) Equal(o Task) bool { return reflect.DeepEqual(t.ToMap(), o.ToMap()) }

// Step is one phase of a plan. Duration is derived from the timestamps.
type Step struct {
	ID               ID
	Name             string
	Workload         int
	TimestampFrom    *time.Time
	TimestampTo      *time.Time
	Duration         *time.Duration
	LearningGoal     *string
	LearningActivity *string
	HasTasks         bool
	Tasks            []Task
	EvaluationTools  []string
	Attachments      []ID
	CustomAttributes map[string]any
}

// NewStep fills defaults and derived fields of s and checks its invariants.
func NewStep(s Step) (Step, error) {
	if s.ID.IsZero() {
		s.ID = NewID()
	}
	for i := range s.Tasks {
		if s.Tasks[i].ID.IsZero() {
			s.Tasks[i].ID = NewID()
		}
	}
	if s.CustomAttributes == nil {
		s.CustomAttributes = map[string]any{}
	}
	if err := s.validate(); err != nil {
		return Step{}, err
	}
	s.Recompute()
	return s, nil
}

func StepFromMap(v any) (Step, error) {
	d, err := asDoc(v)
	if err != nil {
		return Step{}, err
	}
	if err := d.require("name"); err != nil {
		return Step{}, err
	}
	r := &reader{d: d}
	s := Step{
		ID:               r.id(),
		Name:             r.str("name"),
		Workload:         r.integer("workload"),
		TimestampFrom:    r.optTime("timestamp_from"),
		TimestampTo:      r.optTime("timestamp_to"),
		LearningGoal:     r.optString("learning_goal"),
		LearningActivity: r.optString("learning_activity"),
		HasTasks:         r.boolean("has_tasks"),
		Tasks:            readList(r, "tasks", TaskFromMap),
		EvaluationTools:  r.strings("evaluation_tools"),
		Attachments:      r.ids("attachments"),
		CustomAttributes: r.object("custom_attributes"),
	}
	if r.err != nil {
		return Step{}, r.err
	}
	if err := s.validate(); err != nil {
		return Step{}, err
	}
	s.Recompute()
	return s, nil
}

func (s Step) validate() error {
	if s.Workload < 0 {
		return wrongType("workload")
	}
	seen := make(map[string]struct{}, len(s.Tasks))
	for _, t := range s.Tasks {
		if t.TaskFormulation == nil {
			continue
		}
		if _, dup := seen[*t.TaskFormulation]; dup {
			return ErrNonUniqueTask
		}
		seen[*t.TaskFormulation] = struct{}{}
	}
	return nil
}

// Recompute refreshes the derived duration.
func (s *Step) Recompute() {
	s.Duration = nil
	if s.TimestampFrom != nil && s.TimestampTo != nil {
		d := s.TimestampTo.Sub(*s.TimestampFrom)
		s.Duration = &d
	}
}

func (s Step) ToMap() map[string]any {
	tasks := make([]any, len(s.Tasks))
	for i, t := range s.Tasks {
		tasks[i] = t.ToMap()
	}
	attachments := make([]any, len(s.Attachments))
	for i, a := range s.Attachments {
		attachments[i] = a
	}
	custom := make(map[string]any, len(s.CustomAttributes))
	for k, v := range s.CustomAttributes {
		custom[k] = v
	}
	return map[string]any{
		"_id":               s.ID,
		"name":              s.Name,
		"workload":          s.Workload,
		"timestamp_from":    timeOrNil(s.TimestampFrom),
		"timestamp_to":      timeOrNil(s.TimestampTo),
		"duration":          durationOrNil(s.Duration),
		"learning_goal":     strOrNil(s.LearningGoal),
		"learning_activity": strOrNil(s.LearningActivity),
		"has_tasks":         s.HasTasks,
		"tasks":             tasks,
		"evaluation_tools":  cloneStrings(s.EvaluationTools),
		"attachments":       attachments,
		"custom_attributes": custom,
	}
}

func (s Step) Equal(o Step) bool { return reflect.DeepEqual(s.ToMap(), o.ToMap()) }

// durationOrNil serializes a duration in whole seconds.
func durationOrNil(d *time.Duration) any {
	if d == nil {
		return nil
	}
	return int64(d.Seconds())
}

func uniqueStepNames(steps []Step) error {
	seen := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if _, dup := seen[s.Name]; dup {
			return ErrNonUniqueStep
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}
