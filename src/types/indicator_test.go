package types

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIndicatorsValidate(t *testing.T) {
	for _, ind := range DefaultIndicators() {
		assert.NoError(t, ind.Validate(), ind.ID)
	}
}

func TestEndpointAddsDatasetAndLimit(t *testing.T) {
	ind := Indicator{Kind: KindCatalogue, URL: "https://api.data.gov.my/data-catalogue", DatasetID: "ipi", Limit: 150}
	assert.Equal(t, "https://api.data.gov.my/data-catalogue?id=ipi&limit=150", ind.Endpoint())
}

func TestWorkbookURL(t *testing.T) {
	ind := DefaultIndicators()[0]
	assert.Equal(t, "https://storage.dosm.gov.my/bts/bts_2025-q2.xlsx", ind.WorkbookURL(2025, 2))
}

func TestLoadCatalogueMissingFileUsesDefaults(t *testing.T) {
	inds, err := LoadCatalogue(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Len(t, inds, 4)
}

func TestLoadCatalogueOverridesById(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicators.yaml")
	yml := `
indicators:
  - id: ipi
    limit: 48
    tail: 25
  - id: bts
    reference_year: 2024
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	inds, err := LoadCatalogue(path)
	require.NoError(t, err)
	byID := map[string]Indicator{}
	for _, ind := range inds {
		byID[ind.ID] = ind
	}
	assert.Equal(t, 48, byID["ipi"].Limit)
	assert.Equal(t, 25, byID["ipi"].Tail)
	assert.Equal(t, "abs", byID["ipi"].SeriesFilter, "untouched keys keep their defaults")
	assert.Equal(t, 2024, byID["bts"].ReferenceYear)
}

func TestLoadCatalogueRejectsUnknownKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indicators.yaml")
	yml := `
indicators:
  - id: cpi
    kind: rss
    chart: ipi
    url: https://example.invalid
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	_, err := LoadCatalogue(path)
	assert.ErrorContains(t, err, "unknown kind")
}

func TestSelect(t *testing.T) {
	all := DefaultIndicators()
	got, err := Select(all, " wrt, IPI ")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "wrt", got[0].ID)
	assert.Equal(t, "ipi", got[1].ID)

	got, err = Select(all, "all")
	require.NoError(t, err)
	assert.Len(t, got, 4)

	_, err = Select(all, "gdp")
	assert.Error(t, err)
}

func writeCatalogue(t *testing.T, yml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "indicators.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	return path
}

func TestLoadCatalogueRejectsNegativeTail(t *testing.T) {
	_, err := LoadCatalogue(writeCatalogue(t, "indicators:\n  - id: ipi\n    tail: -1\n"))
	assert.ErrorContains(t, err, "tail must not be negative")

	_, err = LoadCatalogue(writeCatalogue(t, "indicators:\n  - id: wrt\n    limit: -5\n"))
	assert.ErrorContains(t, err, "limit must not be negative")
}

func TestLoadCatalogueAppliesExplicitZeroValues(t *testing.T) {
	inds, err := LoadCatalogue(writeCatalogue(t, `
indicators:
  - id: ipi
    tail: 0
    limit: 0
    series_filter: ""
  - id: bts
    reference_year: 0
`))
	require.NoError(t, err)
	byID := map[string]Indicator{}
	for _, ind := range inds {
		byID[ind.ID] = ind
	}
	assert.Equal(t, 0, byID["ipi"].Tail, "tail 0 charts every period")
	assert.Equal(t, 0, byID["ipi"].Limit)
	assert.Equal(t, "", byID["ipi"].SeriesFilter)
	assert.Equal(t, "date", byID["ipi"].DateField, "absent keys keep their defaults")
	assert.Equal(t, 13, byID["lfs"].Tail)
	assert.Equal(t, 0, byID["bts"].ReferenceYear)
	assert.Equal(t, "https://api.data.gov.my/data-catalogue?id=ipi", byID["ipi"].Endpoint())
}

func TestLoadCatalogueRejectsZeroLookback(t *testing.T) {
	_, err := LoadCatalogue(writeCatalogue(t, "indicators:\n  - id: bts\n    lookback_years: 0\n"))
	assert.ErrorContains(t, err, "lookback_years must be >= 1")
}

func TestLoadCatalogueAppendsNewIndicator(t *testing.T) {
	inds, err := LoadCatalogue(writeCatalogue(t, `
indicators:
  - id: cpi
    kind: catalogue
    chart: ipi
    url: https://api.data.gov.my/data-catalogue
    dataset_id: cpi_headline
    date_field: date
    fields: [index]
    tail: 0
`))
	require.NoError(t, err)
	require.Len(t, inds, 5)
	assert.Equal(t, "cpi", inds[4].ID)
	assert.Equal(t, []string{"index"}, inds[4].Fields)
	assert.Equal(t, 0, inds[4].Tail)
}
