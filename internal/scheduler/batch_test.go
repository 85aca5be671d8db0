package scheduler

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anime-shed/image-quality-engine/internal/analyzer"
	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/pkg/config"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// createTestImage creates a simple test image for testing purposes
func createTestImage(width, height int, fillColor color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8((int(fillColor.R) + x*3 + y*5) % 256)
			img.Set(x, y, color.RGBA{v, fillColor.G, fillColor.B, 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// gaugeDecoder tracks how many decodes are in flight. Inputs starting
// with 's' stall until the test releases them.
type gaugeDecoder struct {
	inner   analyzer.Decoder
	delay   time.Duration
	stall   chan struct{}
	running int32
	peak    int32
}

func (d *gaugeDecoder) Decode(data []byte) (image.Image, string, error) {
	n := atomic.AddInt32(&d.running, 1)
	defer atomic.AddInt32(&d.running, -1)
	for {
		p := atomic.LoadInt32(&d.peak)
		if n <= p || atomic.CompareAndSwapInt32(&d.peak, p, n) {
			break
		}
	}

	if len(data) > 0 && data[0] == 's' {
		<-d.stall
		return nil, "", context.DeadlineExceeded
	}
	time.Sleep(d.delay)
	return d.inner.Decode(data)
}

func defaultProfile() *config.Profile {
	p := config.DefaultProfile()
	return &p
}

func TestRunBatch_OrderPreservedAcrossFailures(t *testing.T) {
	dec := &gaugeDecoder{inner: analyzer.NewDecoder(), stall: make(chan struct{})}
	defer close(dec.stall)

	profile := defaultProfile()
	profile.AnalysisTimeout = 100 * time.Millisecond

	s := NewBatchScheduler(analyzer.NewQualityAnalyzer(analyzer.WithDecoder(dec)), nil)
	job := models.BatchJob{Requests: []models.AnalysisRequest{
		{Name: "a.png", Data: encodePNG(t, createTestImage(64, 48, color.RGBA{10, 20, 30, 255}))},
		{Name: "slow.png", Data: []byte("stall")},
		{Name: "c.png", Data: encodePNG(t, createTestImage(64, 48, color.RGBA{90, 20, 30, 255}))},
	}}

	out := s.RunBatch(context.Background(), job, profile)
	require.Len(t, out.Items, 3)

	for i, item := range out.Items {
		assert.Equal(t, i, item.Index)
	}
	assert.Equal(t, "a.png", out.Items[0].Source)
	assert.True(t, out.Items[0].Succeeded())

	require.NotNil(t, out.Items[1].Error)
	assert.Equal(t, string(apperrors.ErrorTypeTimeout), out.Items[1].Error.Kind)
	assert.Nil(t, out.Items[1].Result)

	assert.Equal(t, "c.png", out.Items[2].Source)
	assert.True(t, out.Items[2].Succeeded())

	assert.Equal(t, 3, out.Statistics.Total)
	assert.Equal(t, 2, out.Statistics.Successful)
	assert.Equal(t, 1, out.Statistics.Failed)
	assert.Equal(t, 1, out.Statistics.FailuresByKind[string(apperrors.ErrorTypeTimeout)])
}

func TestRunBatch_RespectsConcurrencyLimit(t *testing.T) {
	dec := &gaugeDecoder{inner: analyzer.NewDecoder(), delay: 20 * time.Millisecond}
	s := NewBatchScheduler(analyzer.NewQualityAnalyzer(analyzer.WithDecoder(dec)), nil)

	data := encodePNG(t, createTestImage(32, 24, color.RGBA{50, 60, 70, 255}))
	reqs := make([]models.AnalysisRequest, 20)
	for i := range reqs {
		reqs[i] = models.AnalysisRequest{Name: "img.png", Data: data}
	}

	out := s.RunBatch(context.Background(), models.BatchJob{Requests: reqs}, defaultProfile())

	assert.Equal(t, 20, out.Statistics.Successful)
	assert.LessOrEqual(t, atomic.LoadInt32(&dec.peak), int32(5), "default profile allows 5 concurrent analyses")
	assert.Greater(t, atomic.LoadInt32(&dec.peak), int32(1), "expected analyses to overlap")
}

func TestRunBatch_JobOverrides(t *testing.T) {
	dec := &gaugeDecoder{inner: analyzer.NewDecoder(), delay: 10 * time.Millisecond}
	s := NewBatchScheduler(analyzer.NewQualityAnalyzer(analyzer.WithDecoder(dec)), nil)

	data := encodePNG(t, createTestImage(32, 24, color.RGBA{50, 60, 70, 255}))
	reqs := []models.AnalysisRequest{
		{Name: "a.png", Data: data}, {Name: "b.png", Data: data}, {Name: "c.png", Data: data}, {Name: "d.png", Data: data},
	}

	out := s.RunBatch(context.Background(), models.BatchJob{Requests: reqs, Concurrency: 1}, defaultProfile())
	assert.Equal(t, 4, out.Statistics.Successful)
	assert.EqualValues(t, 1, atomic.LoadInt32(&dec.peak))
}

func TestRunBatch_ConcurrentBatchesShareProfileCap(t *testing.T) {
	dec := &gaugeDecoder{inner: analyzer.NewDecoder(), delay: 20 * time.Millisecond}
	s := NewBatchScheduler(analyzer.NewQualityAnalyzer(analyzer.WithDecoder(dec)), nil)

	data := encodePNG(t, createTestImage(32, 24, color.RGBA{50, 60, 70, 255}))
	reqs := make([]models.AnalysisRequest, 10)
	for i := range reqs {
		reqs[i] = models.AnalysisRequest{Name: "img.png", Data: data}
	}

	var wg sync.WaitGroup
	outcomes := make([]*models.BatchOutcome, 3)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = s.RunBatch(context.Background(), models.BatchJob{Requests: reqs}, defaultProfile())
		}(i)
	}
	wg.Wait()

	for _, out := range outcomes {
		assert.Equal(t, 10, out.Statistics.Successful)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&dec.peak), int32(5), "three batches together stay within the default cap")
}

func TestRunBatch_JobCannotRaiseProfileCap(t *testing.T) {
	dec := &gaugeDecoder{inner: analyzer.NewDecoder(), delay: 20 * time.Millisecond}
	s := NewBatchScheduler(analyzer.NewQualityAnalyzer(analyzer.WithDecoder(dec)), nil)

	data := encodePNG(t, createTestImage(32, 24, color.RGBA{50, 60, 70, 255}))
	reqs := make([]models.AnalysisRequest, 20)
	for i := range reqs {
		reqs[i] = models.AnalysisRequest{Name: "img.png", Data: data}
	}

	out := s.RunBatch(context.Background(), models.BatchJob{Requests: reqs, Concurrency: 50}, defaultProfile())
	assert.Equal(t, 20, out.Statistics.Successful)
	assert.LessOrEqual(t, atomic.LoadInt32(&dec.peak), int32(5))
}

func TestRunBatch_Empty(t *testing.T) {
	s := NewBatchScheduler(analyzer.NewQualityAnalyzer(), nil)
	out := s.RunBatch(context.Background(), models.BatchJob{}, defaultProfile())
	assert.Empty(t, out.Items)
	assert.Zero(t, out.Statistics.Total)
}

func TestWorkerCount(t *testing.T) {
	p := defaultProfile()
	assert.Equal(t, 5, workerCount(0, p, 100))
	assert.Equal(t, 3, workerCount(0, p, 3))
	assert.Equal(t, 2, workerCount(2, p, 100))
	assert.Equal(t, 5, workerCount(50, p, 100), "a job cannot raise the profile cap")
	assert.Equal(t, 1, workerCount(0, nil, 10))
}

func TestComputeStatistics(t *testing.T) {
	items := []models.BatchItem{
		{Index: 0, Result: &models.AnalysisResult{OverallLevel: models.LevelExcellent, OverallScore: 95, ProcessingTime: 0.5}},
		{Index: 1, Error: &models.ErrorInfo{Kind: "file_not_found"}},
		{Index: 2, Result: &models.AnalysisResult{OverallLevel: models.LevelFair, OverallScore: 65, ProcessingTime: 0.25}},
		{Index: 3, Error: &models.ErrorInfo{Kind: "file_not_found"}},
		{Index: 4, Error: &models.ErrorInfo{Kind: "analysis_timeout"}},
	}

	stats := ComputeStatistics(items)
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Successful)
	assert.Equal(t, 3, stats.Failed)
	assert.Equal(t, 1, stats.LevelCounts.Excellent)
	assert.Equal(t, 1, stats.LevelCounts.Fair)
	assert.Equal(t, 2, stats.FailuresByKind["file_not_found"])
	assert.Equal(t, 1, stats.FailuresByKind["analysis_timeout"])
	assert.InDelta(t, 80.0, stats.MeanOverallScore, 1e-9)
	assert.InDelta(t, 0.75, stats.TotalProcessingTime, 1e-9)
}
