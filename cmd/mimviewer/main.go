// mimviewer is a desktop viewer for indicator results files: one tab per indicator with
// its chart and latest data used. "Fetch Live" pulls fresh data from the sources and appends it
// to the results file. With -screenshots it renders the charts headlessly instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"strings"
	"sync"
	"time"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/joho/godotenv"

	"github.com/iafilius/MalaysiaIndicatorMonitor/cmd/mimviewer/uihelpers"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/render"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

type uiState struct {
	app        fyne.App
	window     fyne.Window
	filePath   string
	configPath string
	snapshots  int
	showFooter bool

	data *viewData

	// live fetching
	client     *monitor.Client
	writerPath string // results file live fetches append to; fixed once the writer starts
	fetching   bool
	fetchCtx   context.Context
	fetchWG    sync.WaitGroup

	// widgets
	fileLabel *widget.Label
	status    *widget.Label
	fetchBtn  *widget.Button
	tabs      *container.AppTabs
	tabIDs    []string
	images    map[string]*canvas.Image
}

// dark theme wrapper
type darkTheme struct{}

func (d *darkTheme) Color(name fyne.ThemeColorName, variant fyne.ThemeVariant) color.Color {
	return theme.DefaultTheme().Color(name, theme.VariantDark)
}
func (d *darkTheme) Font(style fyne.TextStyle) fyne.Resource { return theme.DefaultTheme().Font(style) }
func (d *darkTheme) Icon(name fyne.ThemeIconName) fyne.Resource {
	return theme.DefaultTheme().Icon(name)
}
func (d *darkTheme) Size(name fyne.ThemeSizeName) float32 { return theme.DefaultTheme().Size(name) }

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("[init] error loading .env file: %v\n", err)
	}
	var fileFlag, configFlag, shotsDir, token string
	var shots, noFooter bool
	var shotsWidth, snapshots int
	var httpTimeout time.Duration
	flag.StringVar(&fileFlag, "file", "", "Path to the results JSONL file")
	flag.StringVar(&configFlag, "config", "", "Indicator catalogue YAML (empty = built-in defaults)")
	flag.IntVar(&snapshots, "n", 500, "Max snapshots to load")
	flag.BoolVar(&shots, "screenshots", false, "Render all charts headlessly and exit")
	flag.StringVar(&shotsDir, "screenshots-dir", "screenshots", "Output directory for -screenshots")
	flag.IntVar(&shotsWidth, "screenshots-width", 0, "Chart width for -screenshots (0 = per-chart default)")
	flag.BoolVar(&noFooter, "no-footer", false, "Do not stamp the source footer on charts")
	flag.StringVar(&token, "token", os.Getenv("DATA_GOV_MY_TOKEN"), "Optional data.gov.my API token for live fetches")
	flag.DurationVar(&httpTimeout, "http-timeout", 60*time.Second, "Per-request timeout for live fetches")
	flag.Parse()

	if shots {
		paths, err := RunScreenshotsMode(fileFlag, configFlag, shotsDir, shotsWidth, noFooter)
		for _, p := range paths {
			fmt.Println(p)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "[screenshots] %v\n", err)
			os.Exit(1)
		}
		return
	}

	a := app.NewWithID("com.mim.viewer")
	a.Settings().SetTheme(&darkTheme{})
	w := a.NewWindow("Malaysia Indicator Viewer")
	w.Resize(fyne.NewSize(1100, 800))

	state := &uiState{
		app:        a,
		window:     w,
		filePath:   fileFlag,
		configPath: configFlag,
		snapshots:  snapshots,
		showFooter: !noFooter,
		images:     map[string]*canvas.Image{},
		client:     monitor.NewClient(monitor.ClientOptions{Timeout: httpTimeout, Token: token, Interval: 500 * time.Millisecond}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	state.fetchCtx = ctx
	prefs := a.Preferences()
	if state.filePath == "" {
		state.filePath = prefs.StringWithFallback("lastFile", "")
	}
	if !noFooter {
		state.showFooter = prefs.BoolWithFallback("showFooter", true)
	}

	state.fileLabel = widget.NewLabel(uihelpers.TruncatePath(state.filePath, 60))
	footerChk := widget.NewCheck("Footer", func(b bool) {
		state.showFooter = b
		savePrefs(state)
		redrawCharts(state)
	})
	footerChk.SetChecked(state.showFooter)
	reloadBtn := widget.NewButtonWithIcon("Reload", theme.ViewRefreshIcon(), func() { loadAll(state) })
	exportBtn := widget.NewButtonWithIcon("Export PNG", theme.DocumentSaveIcon(), func() { exportChartPNG(state) })
	state.fetchBtn = widget.NewButtonWithIcon("Fetch Live", theme.DownloadIcon(), func() { fetchLiveAsync(state) })
	state.status = widget.NewLabel("")

	state.tabs = container.NewAppTabs(container.NewTabItem("Charts", widget.NewLabel("Open a results file (File → Open…)")))
	state.tabs.OnSelected = func(*container.TabItem) {
		state.app.Preferences().SetInt("selectedTabIndex", state.tabs.SelectedIndex())
	}
	top := container.NewHBox(state.fileLabel, reloadBtn, state.fetchBtn, exportBtn, footerChk, state.status)
	w.SetContent(container.NewBorder(top, nil, nil, nil, state.tabs))
	buildMenus(state)

	// Redraw charts on window resize so they scale with width
	prevW := 0
	done := make(chan struct{})
	w.SetOnClosed(func() {
		savePrefs(state)
		close(done)
	})
	go func() {
		t := time.NewTicker(300 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				c := w.Canvas()
				if c == nil {
					continue
				}
				curW := int(c.Size().Width)
				if curW != prevW {
					prevW = curW
					fyne.Do(func() { redrawCharts(state) })
				}
			}
		}
	}()

	loadAll(state)
	if idx := prefs.IntWithFallback("selectedTabIndex", 0); idx > 0 && idx < len(state.tabs.Items) {
		state.tabs.SelectIndex(idx)
	}
	w.ShowAndRun()

	cancel()
	state.fetchWG.Wait()
	if state.writerPath != "" {
		monitor.CloseResultWriter()
	}
}

// menus and dialogs
func buildMenus(state *uiState) {
	if state == nil || state.window == nil || state.app == nil {
		return
	}
	var items []*fyne.MenuItem
	for _, f := range recentFiles(state) {
		f := f
		items = append(items, fyne.NewMenuItem(uihelpers.TruncatePath(f, 60), func() { openPath(state, f) }))
	}
	clearRecent := fyne.NewMenuItem("Clear Recent", func() {
		state.app.Preferences().SetString("recentFiles", "")
		buildMenus(state)
	})
	recentMenu := fyne.NewMenu("Open Recent", append(items, clearRecent)...)
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Open…", func() { openFileDialog(state) }),
		fyne.NewMenuItem("Reload", func() { loadAll(state) }),
		fyne.NewMenuItem("Fetch Live", func() { fetchLiveAsync(state) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Chart…", func() { exportChartPNG(state) }),
		fyne.NewMenuItem("Export All Charts…", func() { exportAllCharts(state) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() { state.window.Close() }),
	)
	state.window.SetMainMenu(fyne.NewMainMenu(fileMenu, recentMenu))

	canv := state.window.Canvas()
	if canv != nil {
		for _, mod := range []fyne.KeyModifier{fyne.KeyModifierSuper, fyne.KeyModifierControl} {
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: mod}, func(fyne.Shortcut) { openFileDialog(state) })
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: mod}, func(fyne.Shortcut) { loadAll(state) })
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: mod}, func(fyne.Shortcut) { exportChartPNG(state) })
			canv.AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyW, Modifier: mod}, func(fyne.Shortcut) { state.window.Close() })
		}
	}
}

func openFileDialog(state *uiState) {
	d := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil || rc == nil {
			return
		}
		defer rc.Close()
		openPath(state, rc.URI().Path())
	}, state.window)
	d.Show()
}

func openPath(state *uiState, path string) {
	state.filePath = path
	state.fileLabel.SetText(uihelpers.TruncatePath(path, 60))
	addRecentFile(state, path)
	savePrefs(state)
	buildMenus(state)
	loadAll(state)
}

// loadAll re-reads the results file and rebuilds one tab per catalogue indicator.
func loadAll(state *uiState) {
	if state.filePath == "" {
		if _, err := os.Stat(monitor.DefaultResultsFile); err != nil {
			return
		}
		state.filePath = monitor.DefaultResultsFile
		state.fileLabel.SetText(uihelpers.TruncatePath(state.filePath, 60))
	}
	d, err := loadData(state.filePath, state.configPath, state.snapshots)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	state.status.SetText("")
	showData(state, d)
}

// fetchLiveAsync fetches every catalogue indicator in the background and shows the result.
// The first live fetch starts the results writer on the current file.
func fetchLiveAsync(state *uiState) {
	if state.fetching {
		return
	}
	inds, err := types.LoadCatalogue(state.configPath)
	if err != nil {
		dialog.ShowError(err, state.window)
		return
	}
	if state.writerPath == "" {
		state.writerPath = state.filePath
		if state.writerPath == "" {
			state.writerPath = monitor.DefaultResultsFile
		}
		monitor.SetRunTag(time.Now().UTC().Format("20060102_150405"))
		monitor.InitResultWriter(state.writerPath)
	}
	state.fetching = true
	state.fetchBtn.Disable()
	state.status.SetText("Fetching…")
	state.fetchWG.Add(1)
	go func() {
		defer state.fetchWG.Done()
		d := fetchLive(state.fetchCtx, state.client, inds)
		fyne.Do(func() {
			state.fetching = false
			state.fetchBtn.Enable()
			state.status.SetText(fmt.Sprintf("Live: %d/%d ok, appended to %s", len(d.ordered()), len(inds), uihelpers.TruncatePath(state.writerPath, 40)))
			showData(state, d)
		})
	}()
}

// showData rebuilds one tab per catalogue indicator.
func showData(state *uiState, d *viewData) {
	state.data = d
	state.images = map[string]*canvas.Image{}
	state.tabIDs = nil
	var items []*container.TabItem
	for _, ind := range d.inds {
		_, ok := d.datasets[ind.ID]
		info := widget.NewLabel(indicatorInfo(d, ind.ID))
		info.Wrapping = fyne.TextWrapWord
		var body fyne.CanvasObject = info
		if ok {
			img := canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 100, 60)))
			img.FillMode = canvas.ImageFillContain
			state.images[ind.ID] = img
			body = container.NewBorder(info, nil, nil, nil, container.NewVScroll(img))
		}
		items = append(items, container.NewTabItem(uihelpers.TabTitle(ind.ID, !ok), body))
		state.tabIDs = append(state.tabIDs, ind.ID)
	}
	sel := state.tabs.SelectedIndex()
	state.tabs.SetItems(items)
	if sel > 0 && sel < len(items) {
		state.tabs.SelectIndex(sel)
	}
	redrawCharts(state)
}

// indicatorInfo is the text above a chart: the latest data used, or why there is no chart.
func indicatorInfo(d *viewData, id string) string {
	if err, ok := d.failed[id]; ok {
		return fmt.Sprintf("%s: no chart (%v)", strings.ToUpper(id), err)
	}
	ds := d.datasets[id]
	lines := []string{}
	if sum, ok := d.summaries[id]; ok {
		lines = append(lines, "Latest Data Used: "+sum.String())
	}
	lines = append(lines, render.Footer(ds))
	return strings.Join(lines, "\n")
}

// chartSize computes a chart size based on the current window width so charts use more X-axis space.
func chartSize(state *uiState) (int, int) {
	if state == nil || state.window == nil || state.window.Canvas() == nil {
		return uihelpers.ComputeChartDimensions(1100)
	}
	return uihelpers.ComputeChartDimensions(uihelpers.ChartWidthForCanvas(state.window.Canvas().Size().Width))
}

func redrawCharts(state *uiState) {
	if state == nil || state.data == nil {
		return
	}
	w, h := chartSize(state)
	opts := render.Options{Width: w, Height: h, NoFooter: !state.showFooter}
	for id, img := range state.images {
		ds := state.data.datasets[id]
		out, err := render.RenderIndicator(ds, opts)
		if err != nil {
			monitor.Warnf("[viewer] %s: %v", id, err)
			out = render.Stamp(render.Blank(w, h), err.Error())
		}
		img.Image = out
		img.SetMinSize(fyne.NewSize(float32(w), float32(h)))
		img.Refresh()
	}
}

// selectedID returns the indicator id of the current tab.
func selectedID(state *uiState) string {
	if state.tabs == nil {
		return ""
	}
	i := state.tabs.SelectedIndex()
	if i < 0 || i >= len(state.tabIDs) {
		return ""
	}
	return state.tabIDs[i]
}

// export PNG
func exportChartPNG(state *uiState) {
	id := selectedID(state)
	img := state.images[id]
	if img == nil || img.Image == nil {
		dialog.ShowInformation("Export", "No chart to export.", state.window)
		return
	}
	fs := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil || wc == nil {
			return
		}
		defer wc.Close()
		if err := render.EncodePNG(wc, img.Image); err != nil {
			dialog.ShowError(err, state.window)
		}
	}, state.window)
	fs.SetFileName(render.FileName(id))
	fs.Show()
}

// exportAllCharts writes every chart at its default size into a chosen folder.
func exportAllCharts(state *uiState) {
	if state.data == nil || len(state.data.ordered()) == 0 {
		dialog.ShowInformation("Export", "No chart to export.", state.window)
		return
	}
	dialog.ShowFolderOpen(func(lu fyne.ListableURI, err error) {
		if err != nil || lu == nil {
			return
		}
		paths, err := render.RenderAll(lu.Path(), state.data.ordered(), render.Options{NoFooter: !state.showFooter})
		if err != nil {
			dialog.ShowError(err, state.window)
			return
		}
		dialog.ShowInformation("Export", fmt.Sprintf("Wrote %d chart(s) to %s", len(paths), lu.Path()), state.window)
	}, state.window)
}

// recent files helpers
func recentFiles(state *uiState) []string {
	var out []string
	for _, p := range uihelpers.ParseRecent(state.app.Preferences().StringWithFallback("recentFiles", "")) {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func addRecentFile(state *uiState, path string) {
	list := uihelpers.AddRecent(recentFiles(state), path, 10)
	state.app.Preferences().SetString("recentFiles", strings.Join(list, "\n"))
}

func savePrefs(state *uiState) {
	if state == nil || state.app == nil {
		return
	}
	prefs := state.app.Preferences()
	prefs.SetString("lastFile", state.filePath)
	prefs.SetBool("showFooter", state.showFooter)
}
