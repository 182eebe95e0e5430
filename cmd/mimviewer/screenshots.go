package main

import (
	"fmt"

	"github.com/iafilius/MalaysiaIndicatorMonitor/cmd/mimviewer/uihelpers"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/render"
)

// RunScreenshotsMode renders every indicator found in filePath and writes them as PNGs under outDir.
// It runs headlessly without creating a UI window. width <= 0 keeps each chart's default size.
func RunScreenshotsMode(filePath, configPath, outDir string, width int, noFooter bool) ([]string, error) {
	if filePath == "" {
		filePath = monitor.DefaultResultsFile
	}
	d, err := loadData(filePath, configPath, 500)
	if err != nil {
		return nil, err
	}
	for id, err := range d.failed {
		monitor.Warnf("[screenshots] %s skipped: %v", id, err)
	}
	datasets := d.ordered()
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no indicator in %s could be rebuilt", filePath)
	}
	opts := render.Options{NoFooter: noFooter}
	if width > 0 {
		opts.Width, opts.Height = uihelpers.ComputeChartDimensions(width)
	}
	return render.RenderAll(outDir, datasets, opts)
}
