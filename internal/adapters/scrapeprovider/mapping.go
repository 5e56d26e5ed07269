package scrapeprovider

import (
	"fmt"
	"math"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

// FieldMapping declares, per lead column, the JMESPath expression evaluated
// against a raw actor item. Empty expressions leave the column unset.
type FieldMapping struct {
	Source model.LeadSource

	// Name is required; items where it evaluates to blank are dropped.
	Name string

	Phone           string
	Website         string
	InstagramHandle string
	City            string
	Category        string
	Country         string
	Rating          string
	ReviewsCount    string
	LeadScore       string
	ScoreReason     string

	// OutreachCandidates are evaluated in order; the first non-blank text
	// becomes the outreach message.
	OutreachCandidates []string

	// SkipWhen drops an item when it evaluates truthy, e.g. closed
	// businesses in Google Maps results.
	SkipWhen string
}

// GoogleMapsMapping returns the field paths for Google Maps actor items.
func GoogleMapsMapping() FieldMapping {
	return FieldMapping{
		Source:             model.LeadSourceGoogleMaps,
		Name:               "title",
		Phone:              "phone",
		Website:            "website",
		City:               "city",
		Category:           "categoryName",
		Country:            "countryCode",
		Rating:             "totalScore",
		ReviewsCount:       "reviewsCount",
		LeadScore:          "lead_score",
		ScoreReason:        "reason || score_reason",
		OutreachCandidates: outreachCandidates(),
		SkipWhen:           "permanentlyClosed || temporarilyClosed",
	}
}

// InstagramMapping returns the field paths for Instagram actor items.
// Follower counts land in the reviews column so downstream ranking treats
// both sources uniformly.
func InstagramMapping() FieldMapping {
	return FieldMapping{
		Source:             model.LeadSourceInstagram,
		Name:               "fullName || username",
		Website:            "externalUrl",
		InstagramHandle:    "username",
		ReviewsCount:       "followersCount",
		LeadScore:          "lead_score",
		ScoreReason:        "reason || score_reason",
		OutreachCandidates: outreachCandidates(),
	}
}

func outreachCandidates() []string {
	return []string{
		"ai_outreach",
		"outreach_friendly",
		"outreach_value",
		"outreach_direct",
		"dm_message",
	}
}

// ItemMapper converts raw actor items into lead create requests using a
// validated FieldMapping. It is safe for concurrent use.
type ItemMapper struct {
	mapping FieldMapping
}

// NewItemMapper validates every expression in the mapping up front so a bad
// path fails at startup, not per item.
func NewItemMapper(mapping FieldMapping) (*ItemMapper, error) {
	if !mapping.Source.Valid() {
		return nil, fmt.Errorf("invalid lead source %q", mapping.Source)
	}
	if strings.TrimSpace(mapping.Name) == "" {
		return nil, fmt.Errorf("mapping for %s requires a name expression", mapping.Source)
	}

	exprs := []string{
		mapping.Name,
		mapping.Phone,
		mapping.Website,
		mapping.InstagramHandle,
		mapping.City,
		mapping.Category,
		mapping.Country,
		mapping.Rating,
		mapping.ReviewsCount,
		mapping.LeadScore,
		mapping.ScoreReason,
		mapping.SkipWhen,
	}
	exprs = append(exprs, mapping.OutreachCandidates...)
	for _, expr := range exprs {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("compile %q: %w", expr, err)
		}
	}

	return &ItemMapper{mapping: mapping}, nil
}

// MustNewItemMapper panics when the mapping does not compile. Intended for
// the built-in mappings wired at startup.
func MustNewItemMapper(mapping FieldMapping) *ItemMapper {
	m, err := NewItemMapper(mapping)
	if err != nil {
		panic(err)
	}
	return m
}

// Source reports which lead source this mapper produces.
func (m *ItemMapper) Source() model.LeadSource {
	return m.mapping.Source
}

// Map extracts a lead from one raw item. The second return is false when the
// item should be dropped (blank name, or SkipWhen matched).
func (m *ItemMapper) Map(item map[string]any) (*model.CreateLeadRequest, bool) {
	if item == nil {
		return nil, false
	}
	if m.mapping.SkipWhen != "" && boolAt(item, m.mapping.SkipWhen) {
		return nil, false
	}

	name := stringAt(item, m.mapping.Name)
	if name == nil {
		return nil, false
	}

	req := &model.CreateLeadRequest{
		Source:          m.mapping.Source,
		Name:            *name,
		Phone:           stringAt(item, m.mapping.Phone),
		Website:         stringAt(item, m.mapping.Website),
		InstagramHandle: stringAt(item, m.mapping.InstagramHandle),
		City:            stringAt(item, m.mapping.City),
		Category:        stringAt(item, m.mapping.Category),
		Country:         stringAt(item, m.mapping.Country),
		Rating:          floatAt(item, m.mapping.Rating),
		ReviewsCount:    intAt(item, m.mapping.ReviewsCount),
		LeadScore:       intAt(item, m.mapping.LeadScore),
		ScoreReason:     stringAt(item, m.mapping.ScoreReason),
	}

	for _, expr := range m.mapping.OutreachCandidates {
		if msg := stringAt(item, expr); msg != nil {
			req.OutreachMessage = msg
			break
		}
	}

	return req, true
}

// MapAll maps a whole dataset, dropping items that do not yield a lead.
func (m *ItemMapper) MapAll(items []map[string]any) []model.CreateLeadRequest {
	if len(items) == 0 {
		return nil
	}
	leads := make([]model.CreateLeadRequest, 0, len(items))
	for _, item := range items {
		if req, ok := m.Map(item); ok {
			leads = append(leads, *req)
		}
	}
	return leads
}

func stringAt(item map[string]any, expr string) *string {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	value, err := jmespath.Search(expr, item)
	if err != nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func floatAt(item map[string]any, expr string) *float64 {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	value, err := jmespath.Search(expr, item)
	if err != nil {
		return nil
	}
	f, ok := toFloat(value)
	if !ok {
		return nil
	}
	return &f
}

func intAt(item map[string]any, expr string) *int {
	f := floatAt(item, expr)
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	n := int(*f)
	return &n
}

func boolAt(item map[string]any, expr string) bool {
	value, err := jmespath.Search(expr, item)
	if err != nil {
		return false
	}
	b, ok := value.(bool)
	return ok && b
}

// toFloat accepts the numeric shapes encoding/json produces plus plain ints
// from hand-built test fixtures.
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
