package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/analysis"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/monitor"
	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

func wrtDataset(t *testing.T, months int) *analysis.Dataset {
	t.Helper()
	var ind types.Indicator
	for _, d := range types.DefaultIndicators() {
		if d.ID == "wrt" {
			ind = d
		}
	}
	recs := make([]monitor.Record, 0, months)
	for i := 0; i < months; i++ {
		recs = append(recs, monitor.Record{
			"series": "abs",
			"date":   time.Date(2024, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
			"sales":  json.Number("150000"),
		})
	}
	ds, err := analysis.Prepare(ind, &monitor.IndicatorResult{Indicator: "wrt", Records: recs})
	require.NoError(t, err)
	return ds
}

func TestRowsSkipsMissingChanges(t *testing.T) {
	ds := wrtDataset(t, 3)
	rows := Rows(ds, "r1")
	// 3 sales values and 2 MoM values; YoY needs 12 months of history
	require.Len(t, rows, 5)
	assert.Equal(t, "sales", rows[0].Field)
	assert.Equal(t, 150.0, rows[0].Value)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), rows[0].Period)
	assert.Equal(t, "mom", rows[2].Field)
	assert.Equal(t, 0.0, rows[2].Value)
	assert.Nil(t, Rows(nil, ""))
}

func TestEncodeParquetRoundTrip(t *testing.T) {
	ds := wrtDataset(t, 14)
	for _, codec := range []string{"", "gzip", "none"} {
		data, n, err := EncodeParquet(ds, "run-7", codec)
		require.NoError(t, err, codec)
		assert.Equal(t, "PAR1", string(data[:4]))

		pf, err := buffer.NewBufferFile(data)
		require.NoError(t, err)
		pr, err := reader.NewParquetReader(pf, new(ObservationRow), 1)
		require.NoError(t, err)
		require.Equal(t, int64(n), pr.GetNumRows())
		got := make([]ObservationRow, n)
		require.NoError(t, pr.Read(&got))
		pr.ReadStop()
		require.NoError(t, pf.Close())

		assert.Equal(t, Rows(ds, "run-7"), got)
	}

	_, _, err := EncodeParquet(nil, "", "")
	assert.ErrorIs(t, err, analysis.ErrNoRows)
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "mim/ipi/2025-06-01/ipi.png", ObjectKey("/mim/", "ipi", "2025-06-01", "ipi.png"))
	assert.Equal(t, "ipi/untagged/ipi.parquet", ObjectKey("", "ipi", "", "ipi.parquet"))
}

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, b)
	return &s3.PutObjectOutput{}, nil
}

func TestS3PublisherPut(t *testing.T) {
	fp := &fakePutter{}
	p := &S3Publisher{client: fp, bucket: "charts", prefix: "mim"}
	key := p.Key("lfs", "r1", "lfs.png")
	require.NoError(t, p.Put(context.Background(), key, []byte("png"), "image/png"))
	require.Len(t, fp.inputs, 1)
	assert.Equal(t, "charts", aws.ToString(fp.inputs[0].Bucket))
	assert.Equal(t, "mim/lfs/r1/lfs.png", aws.ToString(fp.inputs[0].Key))
	assert.Equal(t, "image/png", aws.ToString(fp.inputs[0].ContentType))
	assert.Equal(t, []byte("png"), fp.bodies[0])

	require.NoError(t, p.Put(context.Background(), "k", nil, ""))
	assert.Equal(t, "application/octet-stream", aws.ToString(fp.inputs[1].ContentType))

	fp.err = errors.New("denied")
	err := p.Put(context.Background(), "k", nil, "")
	assert.ErrorContains(t, err, "s3://charts/k")
}

func TestNewS3Publisher(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), S3Config{})
	assert.Error(t, err)

	p, err := NewS3Publisher(context.Background(), S3Config{
		Bucket: "b", Endpoint: "http://127.0.0.1:9000", PathStyle: true,
		AccessKeyID: "k", SecretAccessKey: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "ipi/untagged/x", p.Key("ipi", "", "x"))
}
