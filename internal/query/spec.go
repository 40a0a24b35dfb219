// Package query turns client filter parameters into a paginated, sorted
// result set over the video catalog.
package query

import (
	"errors"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/repository"
)

// Parameter names.
const (
	ParamTags       = "tags"
	ParamSearch     = "search"
	ParamDateRange  = "dateRange"
	ParamViewsRange = "viewsRange"
	ParamSort       = "sort"
	ParamFields     = "fields"
	ParamPage       = "page"
	ParamLimit      = "limit"
)

// Sort presets.
const (
	SortPopular    = "popular"
	SortNewest     = "newest"
	SortOldest     = "oldest"
	SortMostLiked  = "mostLiked"
	SortLeastLiked = "leastLiked"
)

var presets = map[string][]repository.SortKey{
	SortPopular:    {{Field: repository.FieldViews, Desc: true}},
	SortNewest:     {{Field: repository.FieldCreatedAt, Desc: true}},
	SortOldest:     {{Field: repository.FieldCreatedAt}},
	SortMostLiked:  {{Field: repository.FieldLikeCount, Desc: true}},
	SortLeastLiked: {{Field: repository.FieldLikeCount}},
}

// DefaultSort is applied when no sort is given.
const DefaultSort = SortNewest

// Options tune parsing.
type Options struct {
	// Strict rejects unparseable values; otherwise they are treated as absent.
	Strict       bool
	DefaultLimit int
	MaxLimit     int
}

// DefaultOptions are used when the engine is built without configuration.
var DefaultOptions = Options{Strict: true, DefaultLimit: 12, MaxLimit: 100}

// TimeRange is an inclusive time window. A nil bound is open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// IntRange is an inclusive integer window. A nil bound is open.
type IntRange struct {
	Min *int64
	Max *int64
}

// Empty reports whether the range can match nothing.
func (r IntRange) Empty() bool {
	return r.Min != nil && r.Max != nil && *r.Min > *r.Max
}

// Spec is a parsed request.
type Spec struct {
	Tags   []string
	Search string
	Date   TimeRange
	Views  IntRange
	// SortName is the preset or the raw key as given; Sort holds the parsed keys.
	SortName string
	Sort     []repository.SortKey
	Page     int
	Limit    int
	// Fields is the projection; nil means every default field.
	Fields []repository.Field
}

// Offset returns the number of rows skipped before the page. It saturates
// at math.MaxInt so a huge page lands past the end instead of wrapping.
func (s *Spec) Offset() int {
	if s.Limit > 0 && s.Page-1 > math.MaxInt/s.Limit {
		return math.MaxInt
	}
	return (s.Page - 1) * s.Limit
}

// Parse reads a Spec from query parameters.
func Parse(values url.Values, opts Options) (*Spec, error) {
	if opts.DefaultLimit < 1 {
		opts.DefaultLimit = DefaultOptions.DefaultLimit
	}
	if opts.MaxLimit < 1 {
		opts.MaxLimit = DefaultOptions.MaxLimit
	}

	spec := &Spec{Page: 1, Limit: opts.DefaultLimit}
	p := parser{values: values, strict: opts.Strict}

	tags, err := p.tags()
	if err != nil {
		return nil, err
	}
	spec.Tags = tags
	spec.Search = strings.TrimSpace(values.Get(ParamSearch))

	if spec.Date, err = p.dateRange(); err != nil {
		return nil, err
	}
	if spec.Views, err = p.viewsRange(); err != nil {
		return nil, err
	}
	if spec.SortName, spec.Sort, err = p.sort(); err != nil {
		return nil, err
	}
	if spec.Fields, err = p.fields(); err != nil {
		return nil, err
	}

	page, err := p.integer(ParamPage)
	if err != nil {
		return nil, err
	}
	if page != nil {
		spec.Page = int(max(*page, 1))
	}

	limit, err := p.integer(ParamLimit)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		spec.Limit = int(min(max(*limit, 1), int64(opts.MaxLimit)))
	}

	return spec, nil
}

type parser struct {
	values url.Values
	strict bool
}

// list splits comma-separated values across every occurrence of name.
func (p parser) list(name string) []string {
	var out []string
	for _, raw := range p.values[name] {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}

func (p parser) tags() ([]string, error) {
	var tags []string
	for _, tag := range p.list(ParamTags) {
		if !models.IsKnownTag(tag) {
			return nil, invalid(ParamTags, tag, "unknown tag")
		}
		if !slices.Contains(tags, tag) {
			tags = append(tags, tag)
		}
	}
	return tags, nil
}

// bounds splits "lo,hi" where either side may be empty.
func (p parser) bounds(name string) (lo, hi string, present bool, err error) {
	raw := strings.TrimSpace(p.values.Get(name))
	if raw == "" {
		return "", "", false, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return "", "", false, invalid(name, raw, "expected two comma-separated bounds")
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true, nil
}

// lenient downgrades err to "absent" outside strict mode.
func (p parser) lenient(err error) error {
	if p.strict {
		return err
	}
	return nil
}

func (p parser) dateRange() (TimeRange, error) {
	lo, hi, ok, err := p.bounds(ParamDateRange)
	if err != nil || !ok {
		return TimeRange{}, p.lenient(err)
	}

	var r TimeRange
	if lo != "" {
		t, err := parseTime(lo, false)
		if err != nil {
			return TimeRange{}, p.lenient(invalid(ParamDateRange, lo, err.Error()))
		}
		r.From = &t
	}
	if hi != "" {
		t, err := parseTime(hi, true)
		if err != nil {
			return TimeRange{}, p.lenient(invalid(ParamDateRange, hi, err.Error()))
		}
		r.To = &t
	}
	return r, nil
}

const dateOnly = "2006-01-02"

// parseTime accepts RFC 3339 or a bare date in UTC. A bare end date covers
// the whole day.
func parseTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.ParseInLocation(dateOnly, s, time.UTC)
	if err != nil {
		return time.Time{}, errors.New("expected RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (p parser) viewsRange() (IntRange, error) {
	lo, hi, ok, err := p.bounds(ParamViewsRange)
	if err != nil || !ok {
		return IntRange{}, p.lenient(err)
	}

	var r IntRange
	for _, side := range []struct {
		raw string
		dst **int64
	}{{lo, &r.Min}, {hi, &r.Max}} {
		if side.raw == "" {
			continue
		}
		n, err := strconv.ParseInt(side.raw, 10, 64)
		if err != nil || n < 0 {
			return IntRange{}, p.lenient(invalid(ParamViewsRange, side.raw, "expected a non-negative integer"))
		}
		*side.dst = &n
	}
	return r, nil
}

func (p parser) sort() (string, []repository.SortKey, error) {
	name := strings.TrimSpace(p.values.Get(ParamSort))
	if name == "" {
		return DefaultSort, presets[DefaultSort], nil
	}
	if keys, ok := presets[name]; ok {
		return name, keys, nil
	}

	// Raw keys: comma-separated [-]field tokens from the sortable allowlist.
	var keys []repository.SortKey
	for _, token := range strings.Split(name, ",") {
		token = strings.TrimSpace(token)
		desc := strings.HasPrefix(token, "-")
		field := repository.Field(strings.TrimPrefix(token, "-"))
		if !field.IsSortable() {
			return "", nil, invalid(ParamSort, token, "not a sort preset or sortable field")
		}
		keys = append(keys, repository.SortKey{Field: field, Desc: desc})
	}
	return name, keys, nil
}

func (p parser) fields() ([]repository.Field, error) {
	names := p.list(ParamFields)
	if len(names) == 0 {
		return nil, nil
	}
	fields := []repository.Field{repository.FieldID}
	for _, name := range names {
		f := repository.Field(name)
		if !IsProjectable(f) {
			return nil, invalid(ParamFields, name, "unknown field")
		}
		if !slices.Contains(fields, f) {
			fields = append(fields, f)
		}
	}
	return fields, nil
}

// integer parses an optional integer. Non-integers are errors in strict mode.
func (p parser) integer(name string) (*int64, error) {
	raw := strings.TrimSpace(p.values.Get(name))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, p.lenient(invalid(name, raw, "expected an integer"))
	}
	return &n, nil
}

// IsProjectable reports whether f may be requested in fields. The revision
// column is internal.
func IsProjectable(f repository.Field) bool {
	return f.IsValid() && f != repository.FieldVersion
}

// DefaultFields is the projection used when fields is absent.
func DefaultFields() []repository.Field {
	var fields []repository.Field
	for _, f := range repository.ProjectableFields() {
		if IsProjectable(f) {
			fields = append(fields, f)
		}
	}
	return fields
}
