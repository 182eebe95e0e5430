package types

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Indicator kinds.
const (
	KindCatalogue   = "catalogue"    // JSON array served by the data.gov.my data-catalogue API
	KindBTSWorkbook = "bts_workbook" // quarterly DOSM Business Tendency Survey xlsx
)

// Chart layouts understood by the render package.
const (
	ChartConfidence = "confidence"
	ChartIPI        = "ipi"
	ChartLFS        = "lfs"
	ChartWRT        = "wrt"
)

// Indicator describes one data source and how its payload becomes a chart.
type Indicator struct {
	ID           string             `yaml:"id" json:"id"`
	Name         string             `yaml:"name" json:"name"`
	Kind         string             `yaml:"kind" json:"kind"`
	Chart        string             `yaml:"chart" json:"chart"`
	Title        string             `yaml:"title,omitempty" json:"title,omitempty"`
	URL          string             `yaml:"url" json:"url"`
	DatasetID    string             `yaml:"dataset_id,omitempty" json:"dataset_id,omitempty"`
	Limit        int                `yaml:"limit,omitempty" json:"limit,omitempty"`
	SeriesFilter string             `yaml:"series_filter,omitempty" json:"series_filter,omitempty"`
	DateField    string             `yaml:"date_field,omitempty" json:"date_field,omitempty"`
	Fields       []string           `yaml:"fields,omitempty" json:"fields,omitempty"`
	Required     []string           `yaml:"required,omitempty" json:"required,omitempty"`
	Scale        map[string]float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
	Tail         int                `yaml:"tail,omitempty" json:"tail,omitempty"` // periods charted; 0 = all

	// Workbook settings (KindBTSWorkbook only).
	FileTemplate  string `yaml:"file_template,omitempty" json:"file_template,omitempty"`
	Sheet         string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	RowMatch      string `yaml:"row_match,omitempty" json:"row_match,omitempty"`
	ReferenceYear int    `yaml:"reference_year,omitempty" json:"reference_year,omitempty"`
	LookbackYears int    `yaml:"lookback_years,omitempty" json:"lookback_years,omitempty"`
	QuarterOrder  []int  `yaml:"quarter_order,omitempty" json:"quarter_order,omitempty"`
}

// Endpoint returns the data-catalogue URL with id and limit query parameters.
// Workbook indicators return URL unchanged.
func (ind Indicator) Endpoint() string {
	if ind.Kind != KindCatalogue {
		return ind.URL
	}
	u, err := url.Parse(ind.URL)
	if err != nil {
		return ind.URL
	}
	q := u.Query()
	if ind.DatasetID != "" {
		q.Set("id", ind.DatasetID)
	}
	if ind.Limit > 0 {
		q.Set("limit", strconv.Itoa(ind.Limit))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// WorkbookURL expands FileTemplate ({year}, {quarter}) relative to URL.
func (ind Indicator) WorkbookURL(year, quarter int) string {
	name := strings.ReplaceAll(ind.FileTemplate, "{year}", strconv.Itoa(year))
	name = strings.ReplaceAll(name, "{quarter}", strconv.Itoa(quarter))
	return strings.TrimRight(ind.URL, "/") + "/" + name
}

// Validate reports the first configuration problem found.
func (ind Indicator) Validate() error {
	if strings.TrimSpace(ind.ID) == "" {
		return errors.New("indicator id is empty")
	}
	if strings.TrimSpace(ind.URL) == "" {
		return fmt.Errorf("indicator %s: url is empty", ind.ID)
	}
	switch ind.Kind {
	case KindCatalogue:
		if ind.DateField == "" {
			return fmt.Errorf("indicator %s: date_field is empty", ind.ID)
		}
		if len(ind.Fields) == 0 {
			return fmt.Errorf("indicator %s: no fields", ind.ID)
		}
	case KindBTSWorkbook:
		if ind.FileTemplate == "" || ind.Sheet == "" || ind.RowMatch == "" {
			return fmt.Errorf("indicator %s: workbook needs file_template, sheet and row_match", ind.ID)
		}
		if ind.LookbackYears < 1 {
			return fmt.Errorf("indicator %s: lookback_years must be >= 1", ind.ID)
		}
		for _, q := range ind.QuarterOrder {
			if q < 1 || q > 4 {
				return fmt.Errorf("indicator %s: invalid quarter %d in quarter_order", ind.ID, q)
			}
		}
	default:
		return fmt.Errorf("indicator %s: unknown kind %q", ind.ID, ind.Kind)
	}
	switch ind.Chart {
	case ChartConfidence, ChartIPI, ChartLFS, ChartWRT:
	default:
		return fmt.Errorf("indicator %s: unknown chart %q", ind.ID, ind.Chart)
	}
	if ind.Tail < 0 {
		return fmt.Errorf("indicator %s: tail must not be negative", ind.ID)
	}
	if ind.Limit < 0 {
		return fmt.Errorf("indicator %s: limit must not be negative", ind.ID)
	}
	if ind.ReferenceYear < 0 {
		return fmt.Errorf("indicator %s: reference_year must not be negative", ind.ID)
	}
	return nil
}

const dataCatalogueURL = "https://api.data.gov.my/data-catalogue"

// DefaultIndicators returns the built-in indicator set.
func DefaultIndicators() []Indicator {
	return []Indicator{
		{
			ID:            "bts",
			Name:          "Business Tendency Survey",
			Kind:          KindBTSWorkbook,
			Chart:         ChartConfidence,
			Title:         "Quarterly Confidence Indicator, Malaysia",
			URL:           "https://storage.dosm.gov.my/bts/",
			FileTemplate:  "bts_{year}-q{quarter}.xlsx",
			Sheet:         "Table 1.4",
			RowMatch:      "Semua sektor",
			LookbackYears: 3,
			QuarterOrder:  []int{2, 1, 4, 3},
		},
		{
			ID:           "ipi",
			Name:         "Industrial Production Index",
			Kind:         KindCatalogue,
			Chart:        ChartIPI,
			Title:        "IPP Index with MoM and YoY Changes",
			URL:          dataCatalogueURL,
			DatasetID:    "ipi",
			Limit:        150,
			SeriesFilter: "abs",
			DateField:    "date",
			Fields:       []string{"index"},
			Required:     []string{"index"},
			Tail:         13,
		},
		{
			ID:        "lfs",
			Name:      "Labour Force Survey",
			Kind:      KindCatalogue,
			Chart:     ChartLFS,
			Title:     "Unemployed and Unemployment Rate",
			URL:       dataCatalogueURL,
			DatasetID: "lfs_month",
			Limit:     500,
			DateField: "date",
			Fields:    []string{"lf_unemployed", "u_rate"},
			Required:  []string{"u_rate"},
			Tail:      13,
		},
		{
			ID:           "wrt",
			Name:         "Wholesale & Retail Trade",
			Kind:         KindCatalogue,
			Chart:        ChartWRT,
			Title:        "Sales Value of Wholesale & Retail Trade (RM Thousand) and YoY Change",
			URL:          dataCatalogueURL,
			DatasetID:    "iowrt",
			Limit:        500,
			SeriesFilter: "abs",
			DateField:    "date",
			Fields:       []string{"sales"},
			Scale:        map[string]float64{"sales": 1.0 / 1000.0},
			Tail:         13,
		},
	}
}

type catalogueFile struct {
	Indicators []override `yaml:"indicators"`
}

// override is one catalogue entry. Pointer fields tell an explicit zero apart from an absent key.
type override struct {
	ID            string             `yaml:"id"`
	Name          *string            `yaml:"name"`
	Kind          *string            `yaml:"kind"`
	Chart         *string            `yaml:"chart"`
	Title         *string            `yaml:"title"`
	URL           *string            `yaml:"url"`
	DatasetID     *string            `yaml:"dataset_id"`
	Limit         *int               `yaml:"limit"`
	SeriesFilter  *string            `yaml:"series_filter"`
	DateField     *string            `yaml:"date_field"`
	Fields        []string           `yaml:"fields"`
	Required      []string           `yaml:"required"`
	Scale         map[string]float64 `yaml:"scale"`
	Tail          *int               `yaml:"tail"`
	FileTemplate  *string            `yaml:"file_template"`
	Sheet         *string            `yaml:"sheet"`
	RowMatch      *string            `yaml:"row_match"`
	ReferenceYear *int               `yaml:"reference_year"`
	LookbackYears *int               `yaml:"lookback_years"`
	QuarterOrder  []int              `yaml:"quarter_order"`
}

// LoadCatalogue reads a YAML indicator catalogue and merges it over the defaults.
// Entries with a known id override every key they set, zero values included; unknown ids are appended.
// An empty path or a missing file yields the defaults.
func LoadCatalogue(path string) ([]Indicator, error) {
	out := DefaultIndicators()
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	var cf catalogueFile
	if err := yaml.Unmarshal(b, &cf); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	for _, in := range cf.Indicators {
		idx := -1
		for i := range out {
			if out[i].ID == in.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			out = append(out, in.apply(Indicator{ID: in.ID}))
			continue
		}
		out[idx] = in.apply(out[idx])
	}
	for _, ind := range out {
		if err := ind.Validate(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// apply copies every key set in o onto base.
func (o override) apply(base Indicator) Indicator {
	setString(&base.Name, o.Name)
	setString(&base.Kind, o.Kind)
	setString(&base.Chart, o.Chart)
	setString(&base.Title, o.Title)
	setString(&base.URL, o.URL)
	setString(&base.DatasetID, o.DatasetID)
	setInt(&base.Limit, o.Limit)
	setString(&base.SeriesFilter, o.SeriesFilter)
	setString(&base.DateField, o.DateField)
	if o.Fields != nil {
		base.Fields = o.Fields
	}
	if o.Required != nil {
		base.Required = o.Required
	}
	if o.Scale != nil {
		base.Scale = o.Scale
	}
	setInt(&base.Tail, o.Tail)
	setString(&base.FileTemplate, o.FileTemplate)
	setString(&base.Sheet, o.Sheet)
	setString(&base.RowMatch, o.RowMatch)
	setInt(&base.ReferenceYear, o.ReferenceYear)
	setInt(&base.LookbackYears, o.LookbackYears)
	if o.QuarterOrder != nil {
		base.QuarterOrder = o.QuarterOrder
	}
	return base
}

// Select filters indicators by a comma separated id list; empty or "all" keeps everything.
func Select(all []Indicator, ids string) ([]Indicator, error) {
	ids = strings.TrimSpace(ids)
	if ids == "" || strings.EqualFold(ids, "all") {
		return all, nil
	}
	var out []Indicator
	for _, id := range strings.Split(ids, ",") {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" {
			continue
		}
		found := false
		for _, ind := range all {
			if ind.ID == id {
				out = append(out, ind)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown indicator %q", id)
		}
	}
	return out, nil
}
