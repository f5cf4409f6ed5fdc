package domain

import (
	"reflect"
	"sort"
	"time"
)

const (
	MaxLiteratureFiles = 5
	CopySuffix         = " (Kopie)"
)

type ProgressState string

const (
	ProgressNotStarted  ProgressState = "not_started"
	ProgressUncompleted ProgressState = "uncompleted"
	ProgressCompleted   ProgressState = "completed"
)

func (s ProgressState) valid() bool {
	return s == ProgressNotStarted || s == ProgressUncompleted || s == ProgressCompleted
}

// progressFields are the plan sections whose completion is tracked.
var progressFields = []string{
	"name", "institutions", "topics", "lectures", "target_groups", "languages",
	"evaluation", "involved_parties", "realization", "learning_env", "learning_goals",
	"methodical_approaches", "physical_mobility", "new_content", "checklist",
}

// Progress tracks completion per plan section and per step.
type Progress struct {
	Fields map[string]ProgressState
	Steps  map[ID]ProgressState
}

func NewProgress() Progress {
	p := Progress{Fields: make(map[string]ProgressState, len(progressFields)), Steps: map[ID]ProgressState{}}
	for _, f := range progressFields {
		p.Fields[f] = ProgressNotStarted
	}
	return p
}

func ProgressFromMap(v any) (Progress, error) {
	d, err := asDoc(v)
	if err != nil {
		return Progress{}, err
	}
	p := NewProgress()
	for _, f := range progressFields {
		raw, ok := d[f]
		if !ok || raw == nil {
			continue
		}
		s, ok := raw.(string)
		if !ok || !ProgressState(s).valid() {
			return Progress{}, wrongType("progress." + f)
		}
		p.Fields[f] = ProgressState(s)
	}
	steps, err := d.list("steps")
	if err != nil {
		return Progress{}, wrongType("progress.steps")
	}
	for _, item := range steps {
		entry, ok := item.(map[string]any)
		if !ok {
			return Progress{}, wrongType("progress.steps")
		}
		for k, raw := range entry {
			id, err := ParseID(k)
			if err != nil {
				return Progress{}, wrongType("progress.steps")
			}
			s, ok := raw.(string)
			if !ok || !ProgressState(s).valid() {
				return Progress{}, wrongType("progress.steps")
			}
			p.Steps[id] = ProgressState(s)
		}
	}
	return p, nil
}

func (p Progress) ToMap() map[string]any {
	m := make(map[string]any, len(p.Fields)+1)
	for k, v := range p.Fields {
		m[k] = string(v)
	}
	keys := make([]string, 0, len(p.Steps))
	for id := range p.Steps {
		keys = append(keys, id.Hex())
	}
	sort.Strings(keys)
	steps := make([]any, 0, len(keys))
	for _, k := range keys {
		steps = append(steps, map[string]any{k: string(p.Steps[MustParseID(k)])})
	}
	m["steps"] = steps
	return m
}

// VEPlan is a virtual exchange plan. TimestampFrom, TimestampTo, Duration and Workload are derived
// from Steps and recomputed on every construction and mutation.
type VEPlan struct {
	ID                      ID
	Author                  string
	ReadAccess              []string
	WriteAccess             []string
	CreationTimestamp       *time.Time
	LastModified            *time.Time
	Name                    *string
	Partners                []string
	Institutions            []Institution
	Topics                  []string
	Lectures                []Lecture
	MajorLearningGoals      []string
	IndividualLearningGoals []IndividualLearningGoal
	MethodicalApproaches    []string
	TargetGroups            []TargetGroup
	Languages               []string
	Evaluation              []Evaluation
	InvolvedParties         []string
	Realization             *string
	PhysicalMobility        *bool
	PhysicalMobilities      []PhysicalMobility
	LearningEnv             *string
	NewContent              *bool
	Checklist               []ChecklistEntry
	Steps                   []Step
	IsGoodPractise          bool
	Abstract                *string
	Reflection              *string
	Literature              *string
	EvaluationFile          *FileRef
	LiteratureFiles         []FileRef
	Progress                Progress

	TimestampFrom *time.Time
	TimestampTo   *time.Time
	Duration      *time.Duration
	Workload      int
}

// NewVEPlan fills defaults and derived fields of p and checks its invariants.
func NewVEPlan(p VEPlan) (VEPlan, error) {
	if p.ID.IsZero() {
		p.ID = NewID()
	}
	if p.Progress.Fields == nil {
		p.Progress = NewProgress()
	}
	for i := range p.Steps {
		step, err := NewStep(p.Steps[i])
		if err != nil {
			return VEPlan{}, err
		}
		p.Steps[i] = step
	}
	if err := p.validate(); err != nil {
		return VEPlan{}, err
	}
	p.Recompute()
	return p, nil
}

func VEPlanFromMap(v any) (VEPlan, error) {
	d, err := asDoc(v)
	if err != nil {
		return VEPlan{}, err
	}
	r := &reader{d: d}
	p := VEPlan{
		ID:                      r.id(),
		Author:                  r.str("author"),
		ReadAccess:              r.strings("read_access"),
		WriteAccess:             r.strings("write_access"),
		CreationTimestamp:       r.optTime("creation_timestamp"),
		LastModified:            r.optTime("last_modified"),
		Name:                    r.optString("name"),
		Partners:                r.strings("partners"),
		Institutions:            readList(r, "institutions", InstitutionFromMap),
		Topics:                  r.strings("topics"),
		Lectures:                readList(r, "lectures", LectureFromMap),
		MajorLearningGoals:      r.strings("major_learning_goals"),
		IndividualLearningGoals: readList(r, "individual_learning_goals", IndividualLearningGoalFromMap),
		MethodicalApproaches:    r.strings("methodical_approaches"),
		TargetGroups:            readList(r, "target_groups", TargetGroupFromMap),
		Languages:               r.strings("languages"),
		Evaluation:              readList(r, "evaluation", EvaluationFromMap),
		InvolvedParties:         r.strings("involved_parties"),
		Realization:             r.optString("realization"),
		PhysicalMobility:        r.optBool("physical_mobility"),
		PhysicalMobilities:      readList(r, "physical_mobilities", PhysicalMobilityFromMap),
		LearningEnv:             r.optString("learning_env"),
		NewContent:              r.optBool("new_content"),
		Checklist:               readList(r, "checklist", ChecklistEntryFromMap),
		Steps:                   readList(r, "steps", StepFromMap),
		IsGoodPractise:          r.boolean("is_good_practise"),
		Abstract:                r.optString("abstract"),
		Reflection:              r.optString("reflection"),
		Literature:              r.optString("literature"),
		LiteratureFiles:         readList(r, "literature_files", FileRefFromMap),
	}
	if r.err != nil {
		return VEPlan{}, r.err
	}
	if raw := d["evaluation_file"]; raw != nil {
		f, err := FileRefFromMap(raw)
		if err != nil {
			return VEPlan{}, nested("evaluation_file", err)
		}
		p.EvaluationFile = &f
	}
	p.Progress = NewProgress()
	if raw := d["progress"]; raw != nil {
		if p.Progress, err = ProgressFromMap(raw); err != nil {
			return VEPlan{}, err
		}
	}
	if err := p.validate(); err != nil {
		return VEPlan{}, err
	}
	p.Recompute()
	return p, nil
}

func (p VEPlan) validate() error {
	if err := uniqueStepNames(p.Steps); err != nil {
		return err
	}
	for _, s := range p.Steps {
		if err := s.validate(); err != nil {
			return err
		}
	}
	for _, c := range p.Checklist {
		if c.Username != p.Author && !containsString(p.Partners, c.Username) {
			return ErrInvalidChecklist
		}
	}
	if len(p.LiteratureFiles) > MaxLiteratureFiles {
		return ErrMaxFilesExceeded
	}
	return nil
}

// Recompute refreshes every derived field from the steps.
func (p *VEPlan) Recompute() {
	p.TimestampFrom, p.TimestampTo, p.Duration, p.Workload = nil, nil, nil, 0
	for i := range p.Steps {
		s := &p.Steps[i]
		s.Recompute()
		p.Workload += s.Workload
		if s.TimestampFrom != nil && (p.TimestampFrom == nil || s.TimestampFrom.Before(*p.TimestampFrom)) {
			t := *s.TimestampFrom
			p.TimestampFrom = &t
		}
		if s.TimestampTo != nil && (p.TimestampTo == nil || s.TimestampTo.After(*p.TimestampTo)) {
			t := *s.TimestampTo
			p.TimestampTo = &t
		}
	}
	if p.TimestampFrom != nil && p.TimestampTo != nil {
		d := p.TimestampTo.Sub(*p.TimestampFrom)
		p.Duration = &d
	}
}

func (p VEPlan) ToMap() map[string]any {
	m := map[string]any{
		"_id":                       p.ID,
		"author":                    p.Author,
		"read_access":               cloneStrings(p.ReadAccess),
		"write_access":              cloneStrings(p.WriteAccess),
		"creation_timestamp":        timeOrNil(p.CreationTimestamp),
		"last_modified":             timeOrNil(p.LastModified),
		"name":                      strOrNil(p.Name),
		"partners":                  cloneStrings(p.Partners),
		"institutions":              mapList(p.Institutions, Institution.ToMap),
		"topics":                    cloneStrings(p.Topics),
		"lectures":                  mapList(p.Lectures, Lecture.ToMap),
		"major_learning_goals":      cloneStrings(p.MajorLearningGoals),
		"individual_learning_goals": mapList(p.IndividualLearningGoals, IndividualLearningGoal.ToMap),
		"methodical_approaches":     cloneStrings(p.MethodicalApproaches),
		"target_groups":             mapList(p.TargetGroups, TargetGroup.ToMap),
		"languages":                 cloneStrings(p.Languages),
		"evaluation":                mapList(p.Evaluation, Evaluation.ToMap),
		"involved_parties":          cloneStrings(p.InvolvedParties),
		"realization":               strOrNil(p.Realization),
		"physical_mobility":         boolOrNil(p.PhysicalMobility),
		"physical_mobilities":       mapList(p.PhysicalMobilities, PhysicalMobility.ToMap),
		"learning_env":              strOrNil(p.LearningEnv),
		"new_content":               boolOrNil(p.NewContent),
		"checklist":                 mapList(p.Checklist, ChecklistEntry.ToMap),
		"steps":                     mapList(p.Steps, Step.ToMap),
		"is_good_practise":          p.IsGoodPractise,
		"abstract":                  strOrNil(p.Abstract),
		"reflection":                strOrNil(p.Reflection),
		"literature":                strOrNil(p.Literature),
		"evaluation_file":           nil,
		"literature_files":          mapList(p.LiteratureFiles, FileRef.ToMap),
		"progress":                  p.Progress.ToMap(),
		"timestamp_from":            timeOrNil(p.TimestampFrom),
		"timestamp_to":              timeOrNil(p.TimestampTo),
		"duration":                  durationOrNil(p.Duration),
		"workload":                  p.Workload,
	}
	if p.EvaluationFile != nil {
		m["evaluation_file"] = p.EvaluationFile.ToMap()
	}
	return m
}

func (p VEPlan) Equal(o VEPlan) bool { return reflect.DeepEqual(p.ToMap(), o.ToMap()) }

func mapList[T any](items []T, toMap func(T) map[string]any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = toMap(item)
	}
	return out
}

func (p VEPlan) CanRead(username string) bool {
	return p.IsGoodPractise || p.Author == username ||
		containsString(p.ReadAccess, username) || containsString(p.WriteAccess, username)
}

func (p VEPlan) CanWrite(username string) bool {
	return p.Author == username || containsString(p.WriteAccess, username)
}

// SearchProjection is the minimized document replicated to the search index.
func (p VEPlan) SearchProjection() map[string]any {
	return map[string]any{
		"name":     strOrNil(p.Name),
		"author":   p.Author,
		"topics":   cloneStrings(p.Topics),
		"abstract": strOrNil(p.Abstract),
	}
}

// Copy returns a deep copy owned by newAuthor with fresh ids throughout. File references are
// carried over unchanged; callers owning blobs must duplicate them.
func (p VEPlan) Copy(newAuthor string) (VEPlan, error) {
	m := p.ToMap()
	stripIDs(m)
	c, err := VEPlanFromMap(m)
	if err != nil {
		return VEPlan{}, err
	}
	stepIDs := make(map[ID]ID, len(p.Steps))
	for i := range p.Steps {
		stepIDs[p.Steps[i].ID] = c.Steps[i].ID
	}
	c.Progress.Steps = make(map[ID]ProgressState, len(p.Progress.Steps))
	for old, state := range p.Progress.Steps {
		if fresh, ok := stepIDs[old]; ok {
			c.Progress.Steps[fresh] = state
		}
	}
	name := CopySuffix
	if p.Name != nil {
		name = *p.Name + CopySuffix
	}
	c.Name = &name
	c.Author = newAuthor
	c.ReadAccess = []string{newAuthor}
	c.WriteAccess = []string{newAuthor}
	c.IsGoodPractise = false
	c.CreationTimestamp, c.LastModified = nil, nil
	kept := c.Checklist[:0]
	for _, entry := range c.Checklist {
		if entry.Username == newAuthor || containsString(c.Partners, entry.Username) {
			kept = append(kept, entry)
		}
	}
	c.Checklist = kept
	return c, nil
}

// stripIDs drops every "_id" key of a serialized document so decoding issues fresh ones.
func stripIDs(v any) {
	switch t := v.(type) {
	case map[string]any:
		delete(t, "_id")
		for _, child := range t {
			stripIDs(child)
		}
	case []any:
		for _, child := range t {
			stripIDs(child)
		}
	}
}
