// Package publish exports prepared indicator datasets as Parquet and uploads run artefacts to S3.
package publish

import (
	"fmt"
	"math"
	"strings"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

// ObservationRow is one (period, field, value) of a dataset in the Parquet export.
type ObservationRow struct {
	Indicator string  `parquet:"name=indicator, type=BYTE_ARRAY, convertedtype=UTF8"`
	Period    int64   `parquet:"name=period, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
	Field     string  `parquet:"name=field, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value     float64 `parquet:"name=value, type=DOUBLE"`
	RunTag    string  `parquet:"name=run_tag, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// Rows flattens ds.Full into observation rows, raw fields first then change columns.
// Missing values are left out.
func Rows(ds *analysis.Dataset, runTag string) []ObservationRow {
	if ds == nil || ds.Full.Len() == 0 {
		return nil
	}
	fields := append([]string{}, analysis.RawFields(ds.Indicator)...)
	if ds.Indicator.Kind == types.KindCatalogue {
		fields = append(fields, analysis.ColMoM, analysis.ColYoY)
	}
	var out []ObservationRow
	for _, r := range ds.Full.Rows {
		for _, f := range fields {
			v := r.Get(f)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			out = append(out, ObservationRow{
				Indicator: ds.Indicator.ID,
				Period:    r.Date.UnixMilli(),
				Field:     f,
				Value:     v,
				RunTag:    runTag,
			})
		}
	}
	return out
}

func compressionCodec(name string) parquet.CompressionCodec {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "snappy":
		return parquet.CompressionCodec_SNAPPY
	case "gzip":
		return parquet.CompressionCodec_GZIP
	default:
		return parquet.CompressionCodec_UNCOMPRESSED
	}
}

// EncodeParquet writes the dataset observations as a Parquet file in memory and
// returns its bytes and the number of rows written. compression is snappy (default), gzip or none.
func EncodeParquet(ds *analysis.Dataset, runTag, compression string) ([]byte, int, error) {
	rows := Rows(ds, runTag)
	if len(rows) == 0 {
		return nil, 0, analysis.ErrNoRows
	}
	mem, err := buffer.NewBufferFile(nil)
	if err != nil {
		return nil, 0, fmt.Errorf("new parquet buffer: %w", err)
	}
	pw, err := writer.NewParquetWriter(mem, new(ObservationRow), 1)
	if err != nil {
		return nil, 0, fmt.Errorf("new parquet writer: %w", err)
	}
	pw.CompressionType = compressionCodec(compression)
	for i := range rows {
		if err := pw.Write(rows[i]); err != nil {
			pw.WriteStop() //nolint:errcheck
			return nil, 0, fmt.Errorf("write %s observation: %w", ds.Indicator.ID, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, 0, fmt.Errorf("finalize %s parquet: %w", ds.Indicator.ID, err)
	}
	return mem.(buffer.BufferFile).Bytes(), len(rows), nil
}
