package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/Oudwins/zog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/nerkh/internal/domain"
)

// Violation describes one failed constraint on one input field.
type Violation struct {
	Field      string `json:"field"`
	Constraint string `json:"constraint"`
	Message    string `json:"message"`
}

// ValidationError carries every violation found in an input object.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := lo.Map(e.Violations, func(v Violation, _ int) string {
		return v.Field + ": " + v.Message
	})
	return "validation failed: " + strings.Join(parts, "; ")
}

// Fields returns the distinct names of the offending fields in report order.
func (e *ValidationError) Fields() []string {
	return lo.Uniq(lo.Map(e.Violations, func(v Violation, _ int) string { return v.Field }))
}

// HasField reports whether field has at least one violation.
func (e *ValidationError) HasField(field string) bool {
	return slices.Contains(e.Fields(), field)
}

var (
	codePattern     = regexp.MustCompile(`^[a-z0-9_]+$`)
	ohlcCodePattern = regexp.MustCompile(`^[A-Z0-9_]+$`)

	errWrongType = errors.New("wrong type")
)

// itemPayload is the parse target of the item schema. Only the issues matter;
// the normalized item is built from the raw input once it is clean.
type itemPayload struct {
	Code          string  `zog:"code"`
	OHLCCode      string  `zog:"ohlcCode"`
	ParentCode    string  `zog:"parentCode"`
	Name          string  `zog:"name"`
	NameAr        string  `zog:"nameAr"`
	NameFa        string  `zog:"nameFa"`
	Variant       string  `zog:"variant"`
	Category      string  `zog:"category"`
	Icon          string  `zog:"icon"`
	DisplayOrder  int     `zog:"displayOrder"`
	IsActive      bool    `zog:"isActive"`
	Source        string  `zog:"source"`
	HasAPIData    bool    `zog:"hasApiData"`
	OverridePrice float64 `zog:"overridePrice"`
}

type fieldSpec struct {
	name        string
	shapeKey    string
	typeMessage string
}

// itemFields lists the payload fields in report order with the message used
// when a value has the wrong type.
var itemFields = []fieldSpec{
	{"code", "Code", "must be a string"},
	{"ohlcCode", "OHLCCode", "must be a string"},
	{"parentCode", "ParentCode", "must be a string"},
	{"name", "Name", "must be a string"},
	{"nameAr", "NameAr", "must be a string"},
	{"nameFa", "NameFa", "must be a string"},
	{"variant", "Variant", "must be a string"},
	{"category", "Category", "must be a string"},
	{"icon", "Icon", "must be a string"},
	{"displayOrder", "DisplayOrder", "must be an integer"},
	{"isActive", "IsActive", "must be a boolean"},
	{"source", "Source", "must be a string"},
	{"hasApiData", "HasAPIData", "must be a boolean"},
	{"overridePrice", "OverridePrice", "must be a finite number"},
}

var knownFields = lo.Map(itemFields, func(f fieldSpec, _ int) string { return f.name })

const (
	codeMessage     = "must contain only lowercase letters, digits and underscores"
	ohlcCodeMessage = "must contain only uppercase letters, digits and underscores"
)

// itemShape declares the rules for managed item payloads. On create, code, name
// and category are required; on update every field is optional. Values are never
// coerced across types: a number is not a string and "true" is not a boolean.
func itemShape(create bool) zog.Shape {
	text := zog.WithCoercer(strictString)
	flag := zog.WithCoercer(strictBool)

	code := zog.String(text).
		Match(codePattern, zog.Message(codeMessage)).
		Min(2, zog.Message(lengthMessage(2, 50))).
		Max(50, zog.Message(lengthMessage(2, 50)))
	name := zog.String(text).
		Min(2, zog.Message(lengthMessage(2, 100))).
		Max(100, zog.Message(lengthMessage(2, 100)))
	category := zog.String(text).
		OneOf(enumValues(domain.Categories), zog.Message(enumMessage(domain.Categories)))
	if create {
		code = code.Required(zog.Message("is required"))
		name = name.Required(zog.Message("is required"))
		category = category.Required(zog.Message("is required"))
	}

	ohlcCode := zog.String(text).
		Match(ohlcCodePattern, zog.Message(ohlcCodeMessage)).
		Min(1, zog.Message(lengthMessage(1, 50))).
		Max(50, zog.Message(lengthMessage(1, 50)))
	parentCode := zog.String(text).
		Match(codePattern, zog.Message(codeMessage)).
		Min(2, zog.Message(lengthMessage(2, 50))).
		Max(50, zog.Message(lengthMessage(2, 50)))
	nameAr := zog.String(text).
		Min(2, zog.Message(lengthMessage(2, 100))).
		Max(100, zog.Message(lengthMessage(2, 100)))
	nameFa := zog.String(text).
		Min(2, zog.Message(lengthMessage(2, 100))).
		Max(100, zog.Message(lengthMessage(2, 100)))
	displayOrder := zog.Int(zog.WithCoercer(strictInt)).
		GTE(0, zog.Message("must be between 0 and 9999")).
		LTE(9999, zog.Message("must be between 0 and 9999"))
	overridePrice := zog.Float64(zog.WithCoercer(strictNumber)).
		GTE(0, zog.Message("must not be negative"))

	return zog.Shape{
		"Code":          code,
		"OHLCCode":      ohlcCode,
		"ParentCode":    parentCode,
		"Name":          name,
		"NameAr":        nameAr,
		"NameFa":        nameFa,
		"Variant":       zog.String(text).OneOf(enumValues(domain.Variants), zog.Message(enumMessage(domain.Variants))),
		"Category":      category,
		"Icon":          zog.String(text).Max(50, zog.Message("must be at most 50 characters")),
		"DisplayOrder":  displayOrder,
		"IsActive":      zog.Bool(flag),
		"Source":        zog.String(text).OneOf(enumValues(domain.Sources), zog.Message(enumMessage(domain.Sources))),
		"HasAPIData":    zog.Bool(flag),
		"OverridePrice": overridePrice,
	}
}

var (
	createSchema = zog.Struct(itemShape(true))
	updateSchema = zog.Struct(itemShape(false))
)

func strictString(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errWrongType
	}
	return s, nil
}

func strictBool(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, errWrongType
	}
	return b, nil
}

func strictInt(v any) (any, error) {
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return nil, errWrongType
	}
	return int(f), nil
}

func strictNumber(v any) (any, error) {
	if _, ok := v.(bool); ok {
		return nil, errWrongType
	}
	d, err := domain.ToDecimal(v)
	if err != nil {
		return nil, err
	}
	return d.InexactFloat64(), nil
}

func lengthMessage(minLen, maxLen int) string {
	return fmt.Sprintf("must be between %d and %d characters", minLen, maxLen)
}

func enumValues[T ~string](values []T) []string {
	return lo.Map(values, func(v T, _ int) string { return string(v) })
}

func enumMessage[T ~string](values []T) string {
	return "must be one of: " + strings.Join(enumValues(values), ", ")
}

// validate checks input against the create or update schema. Unknown fields are rejected up front;
// schema issues are translated to violations in field order.
func validate(input map[string]any, create bool) []Violation {
	var violations []Violation

	unknown := lo.Filter(lo.Keys(input), func(k string, _ int) bool {
		return !slices.Contains(knownFields, k)
	})
	sort.Strings(unknown)
	for _, k := range unknown {
		violations = append(violations, Violation{Field: k, Constraint: "unknown", Message: "field is not allowed"})
	}

	known := lo.PickByKeys(input, knownFields)
	schema := updateSchema
	if create {
		schema = createSchema
	}
	var dst itemPayload
	issues := schema.Parse(known, &dst)

	fieldViolations := make(map[string][]Violation)
	for key, list := range issues {
		field, ok := fieldForKey(key)
		if !ok {
			continue
		}
		for _, iss := range list {
			fieldViolations[field] = append(fieldViolations[field], toViolation(field, iss))
		}
	}
	for _, f := range itemFields {
		violations = append(violations, fieldViolations[f.name]...)
	}
	return violations
}

// fieldForKey maps an issue map key (data key or struct field name) to the payload field.
// Summary keys such as "$first" map to nothing.
func fieldForKey(key string) (string, bool) {
	for _, f := range itemFields {
		if key == f.name || key == f.shapeKey {
			return f.name, true
		}
	}
	return "", false
}

// toViolation names the constraint a zog issue stands for.
func toViolation(field string, iss *zog.ZogIssue) Violation {
	v := Violation{Field: field, Message: iss.Message}
	switch code := string(iss.Code); code {
	case "coerce":
		v.Constraint = "type"
		for _, f := range itemFields {
			if f.name == field {
				v.Message = f.typeMessage
			}
		}
	case "match":
		v.Constraint = "pattern"
	case "min", "max", "len":
		v.Constraint = "length"
	case "one_of":
		v.Constraint = "enum"
	case "gte", "lte", "gt", "lt":
		if field == "overridePrice" {
			v.Constraint = "min"
		} else {
			v.Constraint = "range"
		}
	default:
		v.Constraint = code
	}
	return v
}

// ValidateCreate checks an untyped create payload and returns a normalized item.
// It never partially applies: on any violation the item is zero and the error is a *ValidationError.
func ValidateCreate(input map[string]any) (domain.ManagedItem, error) {
	if violations := validate(input, true); len(violations) > 0 {
		return domain.ManagedItem{}, &ValidationError{Violations: violations}
	}

	code := input["code"].(string)
	item := domain.ManagedItem{
		Code:     code,
		OHLCCode: strings.ToUpper(code),
		Name:     input["name"].(string),
		Category: domain.Category(input["category"].(string)),
		IsActive: true,
		Source:   domain.SourceAPI,
	}
	p := buildPatch(input)
	return p.Apply(item), nil
}

// Patch is a validated partial update. Nil fields are left unchanged.
type Patch struct {
	OHLCCode      *string
	ParentCode    *string
	Name          *string
	NameAr        *string
	NameFa        *string
	Variant       *domain.Variant
	Category      *domain.Category
	Icon          *string
	DisplayOrder  *int
	IsActive      *bool
	Source        *domain.Source
	HasAPIData    *bool
	OverridePrice *decimal.Decimal
}

// Apply returns a copy of item with the patch fields set.
func (p Patch) Apply(item domain.ManagedItem) domain.ManagedItem {
	if p.OHLCCode != nil {
		item.OHLCCode = *p.OHLCCode
	}
	if p.ParentCode != nil {
		item.ParentCode = p.ParentCode
	}
	if p.Name != nil {
		item.Name = *p.Name
	}
	if p.NameAr != nil {
		item.NameAr = p.NameAr
	}
	if p.NameFa != nil {
		item.NameFa = p.NameFa
	}
	if p.Variant != nil {
		item.Variant = p.Variant
	}
	if p.Category != nil {
		item.Category = *p.Category
	}
	if p.Icon != nil {
		item.Icon = p.Icon
	}
	if p.DisplayOrder != nil {
		item.DisplayOrder = *p.DisplayOrder
	}
	if p.IsActive != nil {
		item.IsActive = *p.IsActive
	}
	if p.Source != nil {
		item.Source = *p.Source
	}
	if p.HasAPIData != nil {
		item.HasAPIData = *p.HasAPIData
	}
	if p.OverridePrice != nil {
		item.OverridePrice = p.OverridePrice
	}
	return item
}

// ValidateUpdate checks a partial update payload. Every field is optional and
// code may not be changed after creation.
func ValidateUpdate(input map[string]any) (Patch, error) {
	var violations []Violation
	if _, ok := input["code"]; ok {
		violations = append(violations, Violation{Field: "code", Constraint: "immutable", Message: "cannot be changed after creation"})
	}
	withoutCode := lo.OmitByKeys(input, []string{"code"})
	violations = append(violations, validate(withoutCode, false)...)
	if len(violations) > 0 {
		return Patch{}, &ValidationError{Violations: violations}
	}
	return buildPatch(withoutCode), nil
}

// buildPatch converts already-validated input into a Patch.
func buildPatch(input map[string]any) Patch {
	var p Patch
	p.OHLCCode = optString(input, "ohlcCode")
	p.ParentCode = optString(input, "parentCode")
	p.Name = optString(input, "name")
	p.NameAr = optString(input, "nameAr")
	p.NameFa = optString(input, "nameFa")
	p.Icon = optString(input, "icon")
	if s := optString(input, "variant"); s != nil {
		v := domain.Variant(*s)
		p.Variant = &v
	}
	if s := optString(input, "category"); s != nil {
		c := domain.Category(*s)
		p.Category = &c
	}
	if s := optString(input, "source"); s != nil {
		src := domain.Source(*s)
		p.Source = &src
	}
	if v, ok := input["displayOrder"]; ok && v != nil {
		f, _ := asFloat(v)
		n := int(f)
		p.DisplayOrder = &n
	}
	if v, ok := input["isActive"].(bool); ok {
		p.IsActive = &v
	}
	if v, ok := input["hasApiData"].(bool); ok {
		p.HasAPIData = &v
	}
	if v, ok := input["overridePrice"]; ok && v != nil {
		d, _ := domain.ToDecimal(v)
		p.OverridePrice = &d
	}
	return p
}

// optString treats an empty string as absent, matching the schema.
func optString(input map[string]any, key string) *string {
	s, ok := input[key].(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
