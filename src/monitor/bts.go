package monitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

var (
	// ErrNotFound is returned when no candidate workbook answers HEAD with 200.
	ErrNotFound = errors.New("no available workbook found")
	// ErrRowNotFound is returned when the matched row is absent from the sheet.
	ErrRowNotFound = errors.New("row not found")
)

// Candidate is one probable workbook location.
type Candidate struct {
	URL     string
	Year    int
	Quarter int
}

// Workbook is a downloaded and extracted survey release.
type Workbook struct {
	URL     string
	Year    int
	Quarter int
	Probes  int
	Values  []float64
}

// CandidateWorkbooks lists workbook URLs newest year first; within a year the
// quarters follow ind.QuarterOrder. ReferenceYear 0 means the current year.
func CandidateWorkbooks(ind types.Indicator) []Candidate {
	year := ind.ReferenceYear
	if year <= 0 {
		year = now().Year()
	}
	quarters := ind.QuarterOrder
	if len(quarters) == 0 {
		quarters = []int{4, 3, 2, 1}
	}
	lookback := ind.LookbackYears
	if lookback < 1 {
		lookback = 1
	}
	out := make([]Candidate, 0, lookback*len(quarters))
	for y := year; y > year-lookback; y-- {
		for _, q := range quarters {
			out = append(out, Candidate{URL: ind.WorkbookURL(y, q), Year: y, Quarter: q})
		}
	}
	return out
}

// FindLatestWorkbook probes candidates in order with HEAD; the first 200 wins.
// Probe errors are logged and skipped.
func FindLatestWorkbook(ctx context.Context, c *Client, ind types.Indicator) (Candidate, int, error) {
	probes := 0
	for _, cand := range CandidateWorkbooks(ind) {
		if err := ctx.Err(); err != nil {
			return Candidate{}, probes, err
		}
		probes++
		Infof("[%s] checking for latest file: %s", ind.ID, cand.URL)
		status, err := c.Head(ctx, cand.URL)
		if err != nil {
			Warnf("[%s] probe %s: %v", ind.ID, cand.URL, err)
			continue
		}
		if status == http.StatusOK {
			Infof("[%s] found latest available file: %s", ind.ID, cand.URL)
			return cand, probes, nil
		}
		Debugf("[%s] probe %s -> %d", ind.ID, cand.URL, status)
	}
	return Candidate{}, probes, ErrNotFound
}

// FetchLatestWorkbook locates, downloads and extracts the newest workbook.
// The returned Workbook is non-nil whenever a candidate was found, even if extraction failed.
func FetchLatestWorkbook(ctx context.Context, c *Client, ind types.Indicator) (*Workbook, error) {
	cand, probes, err := FindLatestWorkbook(ctx, c, ind)
	if err != nil {
		return nil, err
	}
	wb := &Workbook{URL: cand.URL, Year: cand.Year, Quarter: cand.Quarter, Probes: probes}
	body, err := c.Get(ctx, cand.URL)
	if err != nil {
		return wb, fmt.Errorf("download workbook: %w", err)
	}
	wb.Values, err = ExtractRow(bytes.NewReader(body), ind.Sheet, ind.RowMatch)
	if err != nil {
		return wb, err
	}
	return wb, nil
}

// ExtractRow finds the first row of sheet whose first cell contains match
// (case-insensitive) and returns its numeric cells in column order.
// Text cells, including the row label itself, are skipped.
func ExtractRow(r io.Reader, sheet, match string) ([]float64, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	needle := strings.ToLower(strings.TrimSpace(match))
	for _, row := range rows {
		if len(row) == 0 || !strings.Contains(strings.ToLower(row[0]), needle) {
			continue
		}
		var vals []float64
		for _, cell := range row {
			if v, ok := parseCellNumber(cell); ok {
				vals = append(vals, v)
			}
		}
		return vals, nil
	}
	return nil, fmt.Errorf("%q in %q: %w", match, sheet, ErrRowNotFound)
}

func parseCellNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// StartPeriod returns the year and quarter n-1 quarters before the latest one,
// i.e. the period of the first of n consecutive quarterly values.
func StartPeriod(latestYear, latestQuarter, n int) (int, int) {
	if n < 1 {
		n = 1
	}
	total := latestYear*4 + latestQuarter - (n - 1)
	year := (total - 1) / 4
	quarter := total - year*4
	return year, quarter
}
