package domain

import (
	"reflect"
	"time"
)

type Institution struct {
	ID              ID
	Name            *string
	SchoolType      *string
	Country         *string
	Department      *string
	AcademicCourses []string
}

func InstitutionFromMap(v any) (Institution, error) {
	d, err := asDoc(v)
	if err != nil {
		return Institution{}, err
	}
	if err := d.require("name"); err != nil {
		return Institution{}, err
	}
	r := &reader{d: d}
	i := Institution{
		ID:              r.id(),
		Name:            r.optString("name"),
		SchoolType:      r.optString("school_type"),
		Country:         r.optString("country"),
		Department:      r.optString("department"),
		AcademicCourses: r.strings("academic_courses"),
	}
	return i, r.err
}

func (i Institution) ToMap() map[string]any {
	return map[string]any{
		"_id":              i.ID,
		"name":             strOrNil(i.Name),
		"school_type":      strOrNil(i.SchoolType),
		"country":          strOrNil(i.Country),
		"department":       strOrNil(i.Department),
		"academic_courses": cloneStrings(i.AcademicCourses),
	}
}

func (i Institution) Equal(o Institution) bool { return reflect.DeepEqual(i.ToMap(), o.ToMap()) }

type Lecture struct {
	ID                 ID
	Name               *string
	LectureType        *string
	LectureFormat      *string
	ParticipantsAmount *int
}

func LectureFromMap(v any) (Lecture, error) {
	d, err := asDoc(v)
	if err != nil {
		return Lecture{}, err
	}
	if err := d.require("name"); err != nil {
		return Lecture{}, err
	}
	r := &reader{d: d}
	l := Lecture{
		ID:                 r.id(),
		Name:               r.optString("name"),
		LectureType:        r.optString("lecture_type"),
		LectureFormat:      r.optString("lecture_format"),
		ParticipantsAmount: r.optInt("participants_amount"),
	}
	return l, r.err
}

func (l Lecture) ToMap() map[string]any {
	return map[string]any{
		"_id":                 l.ID,
		"name":                strOrNil(l.Name),
		"lecture_type":        strOrNil(l.LectureType),
		"lecture_format":      strOrNil(l.LectureFormat),
		"participants_amount": intOrNil(l.ParticipantsAmount),
	}
}

func (l Lecture) Equal(o Lecture) bool { return reflect.DeepEqual(l.ToMap(), o.ToMap()) }

// TargetGroup ages hold an int, a free-text string or nil.
type TargetGroup struct {
	ID             ID
	Name           *string
	AgeMin         any
	AgeMax         any
	Experience     *string
	AcademicCourse *string
	Languages      []string
}

func TargetGroupFromMap(v any) (TargetGroup, error) {
	d, err := asDoc(v)
	if err != nil {
		return TargetGroup{}, err
	}
	if err := d.require("name"); err != nil {
		return TargetGroup{}, err
	}
	r := &reader{d: d}
	t := TargetGroup{
		ID:             r.id(),
		Name:           r.optString("name"),
		AgeMin:         r.intOrString("age_min"),
		AgeMax:         r.intOrString("age_max"),
		Experience:     r.optString("experience"),
		AcademicCourse: r.optString("academic_course"),
		Languages:      r.strings("languages"),
	}
	return t, r.err
}

func (t TargetGroup) ToMap() map[string]any {
	return map[string]any{
		"_id":             t.ID,
		"name":            strOrNil(t.Name),
		"age_min":         t.AgeMin,
		"age_max":         t.AgeMax,
		"experience":      strOrNil(t.Experience),
		"academic_course": strOrNil(t.AcademicCourse),
		"languages":       cloneStrings(t.Languages),
	}
}

func (t TargetGroup) Equal(o TargetGroup) bool { return reflect.DeepEqual(t.ToMap(), o.ToMap()) }

type PhysicalMobility struct {
	ID            ID
	Location      *string
	TimestampFrom *time.Time
	TimestampTo   *time.Time
}

func PhysicalMobilityFromMap(v any) (PhysicalMobility, error) {
	d, err := asDoc(v)
	if err != nil {
		return PhysicalMobility{}, err
	}
	if err := d.require("location"); err != nil {
		return PhysicalMobility{}, err
	}
	r := &reader{d: d}
	p := PhysicalMobility{
		ID:            r.id(),
		Location:      r.optString("location"),
		TimestampFrom: r.optTime("timestamp_from"),
		TimestampTo:   r.optTime("timestamp_to"),
	}
	return p, r.err
}

func (p PhysicalMobility) ToMap() map[string]any {
	return map[string]any{
		"_id":            p.ID,
		"location":       strOrNil(p.Location),
		"timestamp_from": timeOrNil(p.TimestampFrom),
		"timestamp_to":   timeOrNil(p.TimestampTo),
	}
}

func (p PhysicalMobility) Equal(o PhysicalMobility) bool {
	return reflect.DeepEqual(p.ToMap(), o.ToMap())
}

type Evaluation struct {
	ID               ID
	Username         string
	IsGraded         *bool
	TaskType         *string
	AssessmentType   *string
	EvaluationBefore *string
	EvaluationWhile  *string
	EvaluationAfter  *string
}

func EvaluationFromMap(v any) (Evaluation, error) {
	d, err := asDoc(v)
	if err != nil {
		return Evaluation{}, err
	}
	if err := d.require("username"); err != nil {
		return Evaluation{}, err
	}
	r := &reader{d: d}
	e := Evaluation{
		ID:               r.id(),
		Username:         r.str("username"),
		IsGraded:         r.optBool("is_graded"),
		TaskType:         r.optString("task_type"),
		AssessmentType:   r.optString("assessment_type"),
		EvaluationBefore: r.optString("evaluation_before"),
		EvaluationWhile:  r.optString("evaluation_while"),
		EvaluationAfter:  r.optString("evaluation_after"),
	}
	return e, r.err
}

func (e Evaluation) ToMap() map[string]any {
	return map[string]any{
		"_id":               e.ID,
		"username":          e.Username,
		"is_graded":         boolOrNil(e.IsGraded),
		"task_type":         strOrNil(e.TaskType),
		"assessment_type":   strOrNil(e.AssessmentType),
		"evaluation_before": strOrNil(e.EvaluationBefore),
		"evaluation_while":  strOrNil(e.EvaluationWhile),
		"evaluation_after":  strOrNil(e.EvaluationAfter),
	}
}

func (e Evaluation) Equal(o Evaluation) bool { return reflect.DeepEqual(e.ToMap(), o.ToMap()) }

type IndividualLearningGoal struct {
	ID           ID
	Username     string
	LearningGoal *string
}

func IndividualLearningGoalFromMap(v any) (IndividualLearningGoal, error) {
	d, err := asDoc(v)
	if err != nil {
		return IndividualLearningGoal{}, err
	}
	if err := d.require("username"); err != nil {
		return IndividualLearningGoal{}, err
	}
	r := &reader{d: d}
	g := IndividualLearningGoal{
		ID:           r.id(),
		Username:     r.str("username"),
		LearningGoal: r.optString("learning_goal"),
	}
	return g, r.err
}

func (g IndividualLearningGoal) ToMap() map[string]any {
	return map[string]any{
		"_id":           g.ID,
		"username":      g.Username,
		"learning_goal": strOrNil(g.LearningGoal),
	}
}

func (g IndividualLearningGoal) Equal(o IndividualLearningGoal) bool {
	return reflect.DeepEqual(g.ToMap(), o.ToMap())
}

// ChecklistEntry is one partner's readiness checklist. Unset answers stay nil.
type ChecklistEntry struct {
	Username          string
	Technology        *bool
	ExamRegulations   *bool
	TimeFrame         *bool
	CourseFormat      *bool
	LearningAgreement *bool
}

func ChecklistEntryFromMap(v any) (ChecklistEntry, error) {
	d, err := asDoc(v)
	if err != nil {
		return ChecklistEntry{}, err
	}
	if err := d.require("username"); err != nil {
		return ChecklistEntry{}, err
	}
	r := &reader{d: d}
	c := ChecklistEntry{
		Username:          r.str("username"),
		Technology:        r.optBool("technology"),
		ExamRegulations:   r.optBool("exam_regulations"),
		TimeFrame:         r.optBool("time_frame"),
		CourseFormat:      r.optBool("course_format"),
		LearningAgreement: r.optBool("learning_agreement"),
	}
	return c, r.err
}

func (c ChecklistEntry) ToMap() map[string]any {
	return map[string]any{
		"username":           c.Username,
		"technology":         boolOrNil(c.Technology),
		"exam_regulations":   boolOrNil(c.ExamRegulations),
		"time_frame":         boolOrNil(c.TimeFrame),
		"course_format":      boolOrNil(c.CourseFormat),
		"learning_agreement": boolOrNil(c.LearningAgreement),
	}
}

func (c ChecklistEntry) Equal(o ChecklistEntry) bool { return reflect.DeepEqual(c.ToMap(), o.ToMap()) }

// FileRef points at a blob in the object store.
type FileRef struct {
	FileID   ID     `json:"file_id"`
	FileName string `json:"file_name"`
}

func FileRefFromMap(v any) (FileRef, error) {
	d, err := asDoc(v)
	if err != nil {
		return FileRef{}, err
	}
	if err := d.require("file_id", "file_name"); err != nil {
		return FileRef{}, err
	}
	id, err := ParseID(d["file_id"])
	if err != nil {
		return FileRef{}, wrongType("file_id")
	}
	r := &reader{d: d}
	f := FileRef{FileID: id, FileName: r.str("file_name")}
	return f, r.err
}

func (f FileRef) ToMap() map[string]any {
	return map[string]any{"file_id": f.FileID, "file_name": f.FileName}
}
