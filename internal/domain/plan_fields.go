package domain

var derivedPlanFields = []string{"timestamp_from", "timestamp_to", "duration", "workload"}

// planFieldSetters decode one editable attribute into a plan. Keys absent here (ids, ownership,
// access lists, timestamps, derived values and file references) are not editable by name.
var planFieldSetters = map[string]func(p *VEPlan, r *reader){
	"name":                      func(p *VEPlan, r *reader) { p.Name = r.optString("name") },
	"partners":                  func(p *VEPlan, r *reader) { p.Partners = r.strings("partners") },
	"institutions":              func(p *VEPlan, r *reader) { p.Institutions = readList(r, "institutions", InstitutionFromMap) },
	"topics":                    func(p *VEPlan, r *reader) { p.Topics = r.strings("topics") },
	"lectures":                  func(p *VEPlan, r *reader) { p.Lectures = readList(r, "lectures", LectureFromMap) },
	"major_learning_goals":      func(p *VEPlan, r *reader) { p.MajorLearningGoals = r.strings("major_learning_goals") },
	"methodical_approaches":     func(p *VEPlan, r *reader) { p.MethodicalApproaches = r.strings("methodical_approaches") },
	"target_groups":             func(p *VEPlan, r *reader) { p.TargetGroups = readList(r, "target_groups", TargetGroupFromMap) },
	"languages":                 func(p *VEPlan, r *reader) { p.Languages = r.strings("languages") },
	"evaluation":                func(p *VEPlan, r *reader) { p.Evaluation = readList(r, "evaluation", EvaluationFromMap) },
	"involved_parties":          func(p *VEPlan, r *reader) { p.InvolvedParties = r.strings("involved_parties") },
	"realization":               func(p *VEPlan, r *reader) { p.Realization = r.optString("realization") },
	"physical_mobility":         func(p *VEPlan, r *reader) { p.PhysicalMobility = r.optBool("physical_mobility") },
	"learning_env":              func(p *VEPlan, r *reader) { p.LearningEnv = r.optString("learning_env") },
	"new_content":               func(p *VEPlan, r *reader) { p.NewContent = r.optBool("new_content") },
	"checklist":                 func(p *VEPlan, r *reader) { p.Checklist = readList(r, "checklist", ChecklistEntryFromMap) },
	"steps":                     func(p *VEPlan, r *reader) { p.Steps = readList(r, "steps", StepFromMap) },
	"is_good_practise":          func(p *VEPlan, r *reader) { p.IsGoodPractise = r.boolean("is_good_practise") },
	"abstract":                  func(p *VEPlan, r *reader) { p.Abstract = r.optString("abstract") },
	"reflection":                func(p *VEPlan, r *reader) { p.Reflection = r.optString("reflection") },
	"literature":                func(p *VEPlan, r *reader) { p.Literature = r.optString("literature") },
	"individual_learning_goals": func(p *VEPlan, r *reader) {
		p.IndividualLearningGoals = readList(r, "individual_learning_goals", IndividualLearningGoalFromMap)
	},
	"physical_mobilities": func(p *VEPlan, r *reader) {
		p.PhysicalMobilities = readList(r, "physical_mobilities", PhysicalMobilityFromMap)
	},
	"progress": func(p *VEPlan, r *reader) {
		if r.err != nil {
			return
		}
		var err error
		if r.d["progress"] == nil {
			p.Progress = NewProgress()
			return
		}
		p.Progress, err = ProgressFromMap(r.d["progress"])
		r.keep(err)
	},
}

// IsEditableField reports whether name can be set through SetField.
func IsEditableField(name string) bool {
	_, ok := planFieldSetters[name]
	return ok
}

// SetField decodes value into the attribute name and returns the keys of every serialized field
// that changed as a consequence, derived ones included. On error p is left untouched.
func (p *VEPlan) SetField(name string, value any) ([]string, error) {
	set, ok := planFieldSetters[name]
	if !ok {
		return nil, &FieldError{Kind: ErrUnknownField, Field: name}
	}
	next := p.clone()
	r := &reader{d: doc{name: value}}
	set(&next, r)
	if r.err != nil {
		return nil, r.err
	}
	changed := []string{name}
	if name == "partners" {
		kept := make([]ChecklistEntry, 0, len(next.Checklist))
		for _, c := range next.Checklist {
			if c.Username == next.Author || containsString(next.Partners, c.Username) {
				kept = append(kept, c)
			}
		}
		if len(kept) != len(next.Checklist) {
			next.Checklist = kept
			changed = append(changed, "checklist")
		}
	}
	if err := next.validate(); err != nil {
		return nil, err
	}
	next.Recompute()
	if name == "steps" {
		changed = append(changed, derivedPlanFields...)
	}
	*p = next
	return changed, nil
}

// Fields returns the serialized values of keys.
func (p VEPlan) Fields(keys ...string) map[string]any {
	all := p.ToMap()
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		out[k] = all[k]
	}
	return out
}

// AppendStep adds s to the plan, refusing a name already used by another step.
func (p *VEPlan) AppendStep(s Step) error {
	s, err := NewStep(s)
	if err != nil {
		return err
	}
	for _, existing := range p.Steps {
		if existing.Name == s.Name {
			return ErrNonUniqueStep
		}
	}
	p.Steps = append(p.Steps, s)
	p.Recompute()
	return nil
}

// ReplaceEditable overwrites every editable attribute of p with the ones of src, keeping the
// identity, ownership, access lists and timestamps of p.
func (p *VEPlan) ReplaceEditable(src VEPlan) error {
	next := src
	next.ID = p.ID
	next.Author = p.Author
	next.ReadAccess = cloneStrings(p.ReadAccess)
	next.WriteAccess = cloneStrings(p.WriteAccess)
	next.CreationTimestamp = p.CreationTimestamp
	next.LastModified = p.LastModified
	next.EvaluationFile = p.EvaluationFile
	next.LiteratureFiles = p.LiteratureFiles
	if err := next.validate(); err != nil {
		return err
	}
	next.Recompute()
	*p = next
	return nil
}

func (p VEPlan) clone() VEPlan {
	c, err := VEPlanFromMap(p.ToMap())
	if err != nil {
		return p
	}
	return c
}
