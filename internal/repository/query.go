package repository

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
)

// Field names a video attribute that can be filtered, sorted or projected.
type Field string

const (
	FieldID              Field = "id"
	FieldTitle           Field = "title"
	FieldDescription     Field = "description"
	FieldChannelID       Field = "channel_id"
	FieldVideoKey        Field = "video_key"
	FieldThumbnailKey    Field = "thumbnail_key"
	FieldViews           Field = "views"
	FieldLikeCount       Field = "like_count"
	FieldDislikeCount    Field = "dislike_count"
	FieldDurationSeconds Field = "duration_seconds"
	FieldSizeBytes       Field = "size_bytes"
	FieldContentHash     Field = "content_hash"
	FieldVersion         Field = "version"
	FieldCreatedAt       Field = "created_at"
	FieldUpdatedAt       Field = "updated_at"
	// FieldTags lives in video_tags; it can be filtered with eq/in and projected.
	FieldTags Field = "tags"
)

type fieldSpec struct {
	column   string
	sortable bool
}

var fieldSpecs = map[Field]fieldSpec{
	FieldID:              {"id", true},
	FieldTitle:           {"title", true},
	FieldDescription:     {"description", false},
	FieldChannelID:       {"channel_id", false},
	FieldVideoKey:        {"video_key", false},
	FieldThumbnailKey:    {"thumbnail_key", false},
	FieldViews:           {"views", true},
	FieldLikeCount:       {"like_count", true},
	FieldDislikeCount:    {"dislike_count", true},
	FieldDurationSeconds: {"duration_seconds", true},
	FieldSizeBytes:       {"size_bytes", true},
	FieldContentHash:     {"content_hash", false},
	FieldVersion:         {"version", false},
	FieldCreatedAt:       {"created_at", true},
	FieldUpdatedAt:       {"updated_at", true},
	FieldTags:            {"", false},
}

// IsValid reports whether f is a known field.
func (f Field) IsValid() bool {
	_, ok := fieldSpecs[f]
	return ok
}

// IsSortable reports whether results can be ordered by f.
func (f Field) IsSortable() bool {
	return fieldSpecs[f].sortable
}

// ProjectableFields lists every field a caller may ask for, in a stable order.
func ProjectableFields() []Field {
	fields := make([]Field, 0, len(fieldSpecs))
	for f := range fieldSpecs {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}

// Op is a comparison operator in a Predicate.
type Op string

const (
	OpEq    Op = "eq"
	OpGte   Op = "gte"
	OpLte   Op = "lte"
	OpIn    Op = "in"
	OpRange Op = "range"
)

// Predicate is one typed filter condition. Predicates in a Query are ANDed.
type Predicate struct {
	Field  Field
	Op     Op
	Values []any
}

// Eq matches records whose field equals v.
func Eq(f Field, v any) Predicate { return Predicate{Field: f, Op: OpEq, Values: []any{v}} }

// Gte matches records whose field is >= v.
func Gte(f Field, v any) Predicate { return Predicate{Field: f, Op: OpGte, Values: []any{v}} }

// Lte matches records whose field is <= v.
func Lte(f Field, v any) Predicate { return Predicate{Field: f, Op: OpLte, Values: []any{v}} }

// In matches records whose field equals any of vs. For FieldTags it matches
// videos carrying at least one of the tags.
func In(f Field, vs ...any) Predicate { return Predicate{Field: f, Op: OpIn, Values: vs} }

// Range matches lo <= field <= hi. A nil bound leaves that side open.
func Range(f Field, lo, hi any) Predicate {
	return Predicate{Field: f, Op: OpRange, Values: []any{lo, hi}}
}

// SortKey orders results by one field.
type SortKey struct {
	Field Field
	Desc  bool
}

// Query is a conjunctive predicate set with search, ordering, paging and projection.
type Query struct {
	Predicates []Predicate
	// Search matches title OR description case-insensitively as a substring.
	Search string
	Sort   []SortKey
	Offset int
	Limit  int // 0 = unlimited
	// Fields restricts the returned columns; empty means all. ID is always loaded.
	Fields []Field
}

// ErrInvalidQuery is wrapped by every query compilation error.
var ErrInvalidQuery = errors.New("invalid query")

func invalidQuery(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}

// compiledQuery holds everything needed to run a Query against GORM.
type compiledQuery struct {
	filters     []func(*gorm.DB) *gorm.DB
	order       []clause.OrderByColumn
	columns     []string
	preloadTags bool
	offset      int
	limit       int
}

func compileQuery(q Query) (*compiledQuery, error) {
	cq := &compiledQuery{offset: max(q.Offset, 0), limit: max(q.Limit, 0), preloadTags: len(q.Fields) == 0}

	for _, p := range q.Predicates {
		filter, err := compilePredicate(p)
		if err != nil {
			return nil, err
		}
		if filter != nil {
			cq.filters = append(cq.filters, filter)
		}
	}

	if term := strings.TrimSpace(q.Search); term != "" {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		cq.filters = append(cq.filters, func(db *gorm.DB) *gorm.DB {
			return db.Where("(LOWER(title) LIKE ? ESCAPE '!' OR LOWER(description) LIKE ? ESCAPE '!')", pattern, pattern)
		})
	}

	for _, k := range q.Sort {
		spec, ok := fieldSpecs[k.Field]
		if !ok || !spec.sortable {
			return nil, invalidQuery("field %q is not sortable", k.Field)
		}
		cq.order = append(cq.order, clause.OrderByColumn{Column: clause.Column{Name: spec.column}, Desc: k.Desc})
	}

	if len(q.Fields) > 0 {
		cq.columns = []string{fieldSpecs[FieldID].column}
		for _, f := range q.Fields {
			spec, ok := fieldSpecs[f]
			if !ok {
				return nil, invalidQuery("unknown field %q", f)
			}
			if f == FieldTags {
				cq.preloadTags = true
				continue
			}
			if !slices.Contains(cq.columns, spec.column) {
				cq.columns = append(cq.columns, spec.column)
			}
		}
	}

	return cq, nil
}

func compilePredicate(p Predicate) (func(*gorm.DB) *gorm.DB, error) {
	spec, ok := fieldSpecs[p.Field]
	if !ok {
		return nil, invalidQuery("unknown field %q", p.Field)
	}

	if p.Field == FieldTags {
		return compileTagPredicate(p)
	}

	col := clause.Column{Name: spec.column}
	switch p.Op {
	case OpEq, OpGte, OpLte:
		if len(p.Values) != 1 || p.Values[0] == nil {
			return nil, invalidQuery("%s on %q needs exactly one value", p.Op, p.Field)
		}
		var expr clause.Expression
		switch p.Op {
		case OpEq:
			expr = clause.Eq{Column: col, Value: p.Values[0]}
		case OpGte:
			expr = clause.Gte{Column: col, Value: p.Values[0]}
		default:
			expr = clause.Lte{Column: col, Value: p.Values[0]}
		}
		return func(db *gorm.DB) *gorm.DB { return db.Where(expr) }, nil
	case OpIn:
		if len(p.Values) == 0 {
			return nil, invalidQuery("in on %q needs at least one value", p.Field)
		}
		expr := clause.IN{Column: col, Values: p.Values}
		return func(db *gorm.DB) *gorm.DB { return db.Where(expr) }, nil
	case OpRange:
		if len(p.Values) != 2 {
			return nil, invalidQuery("range on %q needs a lower and an upper bound", p.Field)
		}
		lo, hi := p.Values[0], p.Values[1]
		if lo == nil && hi == nil {
			return nil, nil
		}
		return func(db *gorm.DB) *gorm.DB {
			if lo != nil {
				db = db.Where(clause.Gte{Column: col, Value: lo})
			}
			if hi != nil {
				db = db.Where(clause.Lte{Column: col, Value: hi})
			}
			return db
		}, nil
	default:
		return nil, invalidQuery("unsupported operator %q", p.Op)
	}
}

func compileTagPredicate(p Predicate) (func(*gorm.DB) *gorm.DB, error) {
	if p.Op != OpEq && p.Op != OpIn {
		return nil, invalidQuery("tags only support eq and in")
	}
	if len(p.Values) == 0 {
		return nil, invalidQuery("tags filter needs at least one value")
	}
	tags := p.Values
	return func(db *gorm.DB) *gorm.DB {
		sub := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.VideoTag{}).
			Select("video_id").
			Where(clause.IN{Column: clause.Column{Name: "tag"}, Values: tags})
		return db.Where("id IN (?)", sub)
	}, nil
}

// escapeLike escapes LIKE wildcards using '!' as the escape character, which
// every supported dialect accepts without extra quoting.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
