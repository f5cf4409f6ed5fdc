package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// doc is a raw document under strict decoding. Unknown keys are never read and so dropped.
type doc map[string]any

func asDoc(v any) (doc, error) {
	switch m := v.(type) {
	case map[string]any:
		return doc(m), nil
	case doc:
		return m, nil
	default:
		return nil, ErrWrongShape
	}
}

func (d doc) require(keys ...string) error {
	for _, k := range keys {
		if _, ok := d[k]; !ok {
			return missingKey(k)
		}
	}
	return nil
}

func (d doc) has(key string) bool {
	_, ok := d[key]
	return ok
}

// id returns the normalized "_id" or a fresh one when absent or null.
func (d doc) id() (ID, error) {
	v, ok := d["_id"]
	if !ok || v == nil {
		return NewID(), nil
	}
	id, err := ParseID(v)
	if err != nil {
		return NilID, wrongType("_id")
	}
	return id, nil
}

// optString accepts string or null; the empty string normalizes to null.
func (d doc) optString(key string) (*string, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, wrongType(key)
	}
	if s == "" {
		return nil, nil
	}
	return &s, nil
}

func (d doc) str(key string) (string, error) {
	s, err := d.optString(key)
	if err != nil || s == nil {
		return "", err
	}
	return *s, nil
}

func (d doc) optBool(key string) (*bool, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	b, ok := v.(bool)
	if !ok {
		return nil, wrongType(key)
	}
	return &b, nil
}

func (d doc) boolean(key string) (bool, error) {
	b, err := d.optBool(key)
	if err != nil || b == nil {
		return false, err
	}
	return *b, nil
}

// optInt accepts integral numbers and numeric strings; empty string and null give nil.
func (d doc) optInt(key string) (*int, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, ok := toInt(v)
	if !ok {
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return nil, nil
		}
		return nil, wrongType(key)
	}
	return &n, nil
}

func (d doc) integer(key string) (int, error) {
	n, err := d.optInt(key)
	if err != nil || n == nil {
		return 0, err
	}
	return *n, nil
}

// intOrString implements the {int, non-empty string, null} type set. Numeric strings become ints.
func (d doc) intOrString(key string) (any, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	if n, ok := toInt(v); ok {
		return n, nil
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return nil, nil
		}
		return s, nil
	}
	return nil, wrongType(key)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		if n < math.MinInt || n > math.MaxInt {
			return 0, false
		}
		return int(n), true
	case float64:
		// float64(math.MaxInt) rounds up to 2^63, which is already out of range.
		if n != math.Trunc(n) || n < math.MinInt || n >= math.MaxInt {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := strconv.ParseInt(n.String(), 10, strconv.IntSize)
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		return i, err == nil
	default:
		return 0, false
	}
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func (d doc) optTime(key string) (*time.Time, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case time.Time:
		u := t.UTC()
		return &u, nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		u := t.UTC()
		return &u, nil
	case string:
		if t == "" {
			return nil, nil
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				u := parsed.UTC()
				return &u, nil
			}
		}
	}
	return nil, wrongType(key)
}

func (d doc) strings(key string) ([]string, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return []string{}, nil
	}
	switch list := v.(type) {
	case []string:
		return append([]string{}, list...), nil
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, wrongType(key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, wrongType(key)
	}
}

func (d doc) ids(key string) ([]ID, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return []ID{}, nil
	}
	var raw []any
	switch list := v.(type) {
	case []ID:
		return append([]ID{}, list...), nil
	case []string:
		for _, s := range list {
			raw = append(raw, s)
		}
	case []any:
		raw = list
	default:
		return nil, wrongType(key)
	}
	out := make([]ID, 0, len(raw))
	for _, item := range raw {
		id, err := ParseID(item)
		if err != nil {
			return nil, wrongType(key)
		}
		out = append(out, id)
	}
	return out, nil
}

// list returns the elements of a nested collection, each required to be a map.
func (d doc) list(key string) ([]any, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []any:
		return list, nil
	case []map[string]any:
		out := make([]any, len(list))
		for i := range list {
			out[i] = list[i]
		}
		return out, nil
	default:
		return nil, wrongType(key)
	}
}

func (d doc) object(key string) (map[string]any, error) {
	v, ok := d[key]
	if !ok || v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, wrongType(key)
	}
	return m, nil
}

// decodeList runs decode over every element of key and fails on the first bad element.
func decodeList[T any](d doc, key string, decode func(any) (T, error)) ([]T, error) {
	raw, err := d.list(key)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		v, err := decode(item)
		if err != nil {
			return nil, nested(key, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// reader decodes fields in sequence and keeps the first error.
type reader struct {
	d   doc
	err error
}

func (r *reader) keep(err error) bool {
	if r.err == nil && err != nil {
		r.err = err
	}
	return r.err == nil
}

func (r *reader) id() ID {
	if r.err != nil {
		return NilID
	}
	v, err := r.d.id()
	r.keep(err)
	return v
}

func (r *reader) optString(key string) *string {
	if r.err != nil {
		return nil
	}
	v, err := r.d.optString(key)
	r.keep(err)
	return v
}

func (r *reader) str(key string) string {
	if r.err != nil {
		return ""
	}
	v, err := r.d.str(key)
	r.keep(err)
	return v
}

func (r *reader) optBool(key string) *bool {
	if r.err != nil {
		return nil
	}
	v, err := r.d.optBool(key)
	r.keep(err)
	return v
}

func (r *reader) boolean(key string) bool {
	if r.err != nil {
		return false
	}
	v, err := r.d.boolean(key)
	r.keep(err)
	return v
}

func (r *reader) optInt(key string) *int {
	if r.err != nil {
		return nil
	}
	v, err := r.d.optInt(key)
	r.keep(err)
	return v
}

func (r *reader) integer(key string) int {
	if r.err != nil {
		return 0
	}
	v, err := r.d.integer(key)
	r.keep(err)
	return v
}

func (r *reader) intOrString(key string) any {
	if r.err != nil {
		return nil
	}
	v, err := r.d.intOrString(key)
	r.keep(err)
	return v
}

func (r *reader) optTime(key string) *time.Time {
	if r.err != nil {
		return nil
	}
	v, err := r.d.optTime(key)
	r.keep(err)
	return v
}

func (r *reader) strings(key string) []string {
	if r.err != nil {
		return nil
	}
	v, err := r.d.strings(key)
	r.keep(err)
	return v
}

func (r *reader) ids(key string) []ID {
	if r.err != nil {
		return nil
	}
	v, err := r.d.ids(key)
	r.keep(err)
	return v
}

func (r *reader) object(key string) map[string]any {
	if r.err != nil {
		return nil
	}
	v, err := r.d.object(key)
	r.keep(err)
	return v
}

func readList[T any](r *reader, key string, decode func(any) (T, error)) []T {
	if r.err != nil {
		return nil
	}
	v, err := decodeList(r.d, key, decode)
	r.keep(err)
	return v
}

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func boolOrNil(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func intOrNil(n *int) any {
	if n == nil {
		return nil
	}
	return *n
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string{}, in...)
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
