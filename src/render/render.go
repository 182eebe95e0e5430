package render

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

// Default canvas size in pixels.
const (
	DefaultWidth  = 1000
	DefaultHeight = 500
)

// Options controls the rendered image.
type Options struct {
	Width  int // 0 = chart default
	Height int
	// NoFooter suppresses the source/retrieval stamp.
	NoFooter bool
}

var defaultSizes = map[string][2]int{
	types.ChartConfidence: {1000, 600},
	types.ChartIPI:        {1200, 600},
	types.ChartLFS:        {1000, 500},
	types.ChartWRT:        {1000, 500},
}

// Size returns the pixel size used for a chart layout.
func Size(chartKind string, opts Options) (int, int) {
	s, ok := defaultSizes[chartKind]
	if !ok {
		s = [2]int{DefaultWidth, DefaultHeight}
	}
	w, h := s[0], s[1]
	if opts.Width > 0 {
		w = opts.Width
	}
	if opts.Height > 0 {
		h = opts.Height
	}
	return w, h
}

// Build assembles the go-chart definition for a prepared dataset.
func Build(ds *analysis.Dataset) (*chart.Chart, error) {
	if ds == nil || ds.Frame.Len() == 0 {
		return nil, ErrEmptySeries
	}
	ind := ds.Indicator
	f := ds.Frame
	primary := analysis.PrimaryField(ind)
	switch ind.Chart {
	case types.ChartConfidence:
		return Confidence(title(ind, "Quarterly Confidence Indicator, Malaysia"), ds.Labels, f.Column(analysis.ColValue))
	case types.ChartIPI:
		return IPI(title(ind, "IPP Index with MoM and YoY Changes"), ds.Labels,
			f.Column(primary), f.Column(analysis.ColMoM), f.Column(analysis.ColYoY))
	case types.ChartLFS:
		bars := ""
		for _, fld := range ind.Fields {
			if fld != primary {
				bars = fld
				break
			}
		}
		if bars == "" {
			return nil, fmt.Errorf("%s: lfs chart needs a bar field besides %q", ind.ID, primary)
		}
		return LFS(title(ind, "Unemployed and Unemployment Rate"), ds.Labels, f.Column(bars), f.Column(primary))
	case types.ChartWRT:
		return WRT(title(ind, "Sales Value of Wholesale & Retail Trade (RM Thousand) and YoY Change"), ds.Labels,
			f.Column(primary), f.Column(analysis.ColYoY))
	default:
		return nil, fmt.Errorf("%s: unknown chart %q", ind.ID, ind.Chart)
	}
}

func title(ind types.Indicator, fallback string) string {
	if strings.TrimSpace(ind.Title) != "" {
		return ind.Title
	}
	return fallback
}

// Footer is the provenance line stamped under a chart.
func Footer(ds *analysis.Dataset) string {
	var parts []string
	if ds.SourceURL != "" {
		parts = append(parts, "Source: "+ds.SourceURL)
	}
	if ds.FetchedAt != "" {
		parts = append(parts, "retrieved "+ds.FetchedAt)
	}
	if ds.RunTag != "" {
		parts = append(parts, "run "+ds.RunTag)
	}
	return strings.Join(parts, "  |  ")
}

// RenderIndicator draws the chart for ds into an image.
func RenderIndicator(ds *analysis.Dataset, opts Options) (image.Image, error) {
	ch, err := Build(ds)
	if err != nil {
		return nil, err
	}
	ch.Width, ch.Height = Size(ds.Indicator.Chart, opts)
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("%s: render: %w", ds.Indicator.ID, err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		return nil, fmt.Errorf("%s: decode: %w", ds.Indicator.ID, err)
	}
	if !opts.NoFooter {
		img = Stamp(img, Footer(ds))
	}
	return img, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

// FileName is the PNG name written for an indicator.
func FileName(id string) string {
	return strings.ToLower(id) + ".png"
}

// RenderAll writes one PNG per dataset into outDir and returns the written paths.
// A failing chart is logged and skipped; the joined errors are returned with the paths that succeeded.
func RenderAll(outDir string, datasets []*analysis.Dataset, opts Options) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create charts dir: %w", err)
	}
	var paths []string
	var errs []error
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		img, err := RenderIndicator(ds, opts)
		if err != nil {
			monitor.Warnf("[render] %v", err)
			errs = append(errs, err)
			continue
		}
		var buf bytes.Buffer
		if err := EncodePNG(&buf, img); err != nil {
			errs = append(errs, fmt.Errorf("png encode %s: %w", ds.Indicator.ID, err))
			continue
		}
		outPath := filepath.Join(outDir, FileName(ds.Indicator.ID))
		if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", outPath, err))
			continue
		}
		monitor.Infof("[render] wrote %s", outPath)
		paths = append(paths, outPath)
	}
	return paths, errors.Join(errs...)
}
