package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rajinder-mohan/yt2txt/internal/db"
	"github.com/rajinder-mohan/yt2txt/internal/db/models"
	"github.com/rajinder-mohan/yt2txt/internal/db/repository"
)

// Mock repositories and collaborators

type mockVideoRepo struct {
	mock.Mock
}

func (m *mockVideoRepo) Create(ctx context.Context, video *models.Video) error {
	args := m.Called(ctx, video)
	return args.Error(0)
}

func (m *mockVideoRepo) GetByVideoID(ctx context.Context, videoID string) (*models.Video, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Video), args.Error(1)
}

func (m *mockVideoRepo) List(ctx context.Context, filters *repository.VideoFilters) ([]*models.Video, int, error) {
	args := m.Called(ctx, filters)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Video), args.Int(1), args.Error(2)
}

func (m *mockVideoRepo) ListByStatus(ctx context.Context, status models.Status, limit int) ([]*models.Video, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Video), args.Error(1)
}

func (m *mockVideoRepo) AcquireForProcessing(ctx context.Context, videoID string, staleBefore time.Time, allowRetry bool) (bool, error) {
	args := m.Called(ctx, videoID, staleBefore, allowRetry)
	return args.Bool(0), args.Error(1)
}

func (m *mockVideoRepo) MarkSuccess(ctx context.Context, videoID, transcript string) error {
	args := m.Called(ctx, videoID, transcript)
	return args.Error(0)
}

func (m *mockVideoRepo) MarkFailure(ctx context.Context, videoID string, status models.Status, errorMessage string) error {
	args := m.Called(ctx, videoID, status, errorMessage)
	return args.Error(0)
}

func (m *mockVideoRepo) UpdateMetadata(ctx context.Context, videoID string, meta *models.VideoMetadata, audioPath string) error {
	args := m.Called(ctx, videoID, meta, audioPath)
	return args.Error(0)
}

func (m *mockVideoRepo) SetIgnored(ctx context.Context, videoID string, ignored bool) error {
	args := m.Called(ctx, videoID, ignored)
	return args.Error(0)
}

func (m *mockVideoRepo) Delete(ctx context.Context, videoID string) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

func (m *mockVideoRepo) ReclaimStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	args := m.Called(ctx, staleBefore)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockVideoRepo) CountByStatus(ctx context.Context) (map[models.Status]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.Status]int64), args.Error(1)
}

type mockDownloader struct {
	mock.Mock
}

func (m *mockDownloader) Download(ctx context.Context, videoID string) (string, *models.VideoMetadata, error) {
	args := m.Called(ctx, videoID)
	var meta *models.VideoMetadata
	if args.Get(1) != nil {
		meta = args.Get(1).(*models.VideoMetadata)
	}
	return args.String(0), meta, args.Error(2)
}

type mockTranscriber struct {
	mock.Mock
}

func (m *mockTranscriber) TranscribeFile(ctx context.Context, audioPath, mimeType string) (string, error) {
	args := m.Called(ctx, audioPath, mimeType)
	return args.String(0), args.Error(1)
}

const testVideoID = "dQw4w9WgXcQ"

func newTestPipeline(repo *mockVideoRepo, dl *mockDownloader, tr *mockTranscriber) *Pipeline {
	return NewPipeline(repo, dl, tr, PipelineConfig{
		RequestDelay:         0,
		CallTimeout:          time.Minute,
		StaleProcessingAfter: 15 * time.Minute,
	})
}

func strPtr(s string) *string { return &s }

func TestPipeline_Transcribe_NewVideo(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	audioPath := filepath.Join(t.TempDir(), testVideoID+".m4a")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio"), 0o644))

	meta := &models.VideoMetadata{Title: "Test Video", ChannelName: "Test Channel"}

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(nil, db.ErrNotFound).Once()
	repo.On("Create", mock.Anything, mock.MatchedBy(func(v *models.Video) bool {
		return v.VideoID == testVideoID && v.Status == models.StatusPending
	})).Return(nil).Once()
	repo.On("AcquireForProcessing", mock.Anything, testVideoID, mock.Anything, false).Return(true, nil).Once()
	dl.On("Download", mock.Anything, testVideoID).Return(audioPath, meta, nil).Once()
	repo.On("UpdateMetadata", mock.Anything, testVideoID, meta, audioPath).Return(nil).Once()
	tr.On("TranscribeFile", mock.Anything, audioPath, "audio/mp4").Return("hello world", nil).Once()
	repo.On("MarkSuccess", mock.Anything, testVideoID, "hello world").Return(nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "hello world", result.Transcript)
	assert.False(t, result.FromCache)

	// The audio artifact is deleted after a stored transcript.
	_, statErr := os.Stat(audioPath)
	assert.True(t, os.IsNotExist(statErr))

	repo.AssertExpectations(t)
	dl.AssertExpectations(t)
	tr.AssertExpectations(t)
}

func TestPipeline_Transcribe_CacheHit(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	video := models.NewVideo(testVideoID)
	video.Status = models.StatusSuccess
	video.Transcript = strPtr("hello world")

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(video, nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "hello world", result.Transcript)
	assert.True(t, result.FromCache)

	// No external collaborator may be touched on a cache hit.
	dl.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
	tr.AssertNotCalled(t, "TranscribeFile", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestPipeline_Transcribe_StoredFailureNotRetried(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	video := models.NewVideo(testVideoID)
	video.Status = models.StatusFailed
	video.ErrorMessage = strPtr("video unavailable")

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(video, nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, "video unavailable", result.ErrorMessage)
	assert.True(t, result.FromCache)

	dl.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "AcquireForProcessing", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Transcribe_InFlight(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	video := models.NewVideo(testVideoID)
	video.Status = models.StatusProcessing
	video.UpdatedAt = time.Now()

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(video, nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, result.Status)
	assert.True(t, result.InFlight)

	dl.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}

func TestPipeline_Transcribe_StaleProcessingReclaimed(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	audioPath := filepath.Join(t.TempDir(), testVideoID+".m4a")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio"), 0o644))

	video := models.NewVideo(testVideoID)
	video.Status = models.StatusProcessing
	video.UpdatedAt = time.Now().Add(-time.Hour)

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(video, nil).Once()
	repo.On("AcquireForProcessing", mock.Anything, testVideoID, mock.Anything, false).Return(true, nil).Once()
	dl.On("Download", mock.Anything, testVideoID).Return(audioPath, (*models.VideoMetadata)(nil), nil).Once()
	tr.On("TranscribeFile", mock.Anything, audioPath, "audio/mp4").Return("recovered", nil).Once()
	repo.On("MarkSuccess", mock.Anything, testVideoID, "recovered").Return(nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	repo.AssertExpectations(t)
}

func TestPipeline_Transcribe_RateLimitClassified(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(nil, db.ErrNotFound).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("AcquireForProcessing", mock.Anything, testVideoID, mock.Anything, false).Return(true, nil).Once()
	dl.On("Download", mock.Anything, testVideoID).
		Return("", (*models.VideoMetadata)(nil), errors.New("HTTP 429 Too Many Requests")).Once()
	repo.On("MarkFailure", mock.Anything, testVideoID, models.StatusRateLimited, mock.Anything).Return(nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusRateLimited, result.Status)
	assert.Contains(t, result.ErrorMessage, "429")
	repo.AssertExpectations(t)
}

func TestPipeline_Transcribe_GenericFailure(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(nil, db.ErrNotFound).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("AcquireForProcessing", mock.Anything, testVideoID, mock.Anything, false).Return(true, nil).Once()
	dl.On("Download", mock.Anything, testVideoID).
		Return("", (*models.VideoMetadata)(nil), errors.New("video is private")).Once()
	repo.On("MarkFailure", mock.Anything, testVideoID, models.StatusFailed, mock.Anything).Return(nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "video is private")
	tr.AssertNotCalled(t, "TranscribeFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestPipeline_Transcribe_LostAcquireRace(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	pending := models.NewVideo(testVideoID)

	winner := models.NewVideo(testVideoID)
	winner.Status = models.StatusSuccess
	winner.Transcript = strPtr("raced transcript")

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(pending, nil).Once()
	repo.On("AcquireForProcessing", mock.Anything, testVideoID, mock.Anything, false).Return(false, nil).Once()
	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(winner, nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "raced transcript", result.Transcript)
	assert.True(t, result.FromCache)

	dl.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestPipeline_Transcribe_ResumesCachedAudio(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	audioPath := filepath.Join(t.TempDir(), testVideoID+".webm")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio"), 0o644))

	video := models.NewVideo(testVideoID)
	video.Status = models.StatusFailed
	video.ErrorMessage = strPtr("transcription timed out")
	video.AudioPath = &audioPath

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(video, nil).Once()
	repo.On("AcquireForProcessing", mock.Anything, testVideoID, mock.Anything, true).Return(true, nil).Once()
	tr.On("TranscribeFile", mock.Anything, audioPath, "audio/webm").Return("resumed", nil).Once()
	repo.On("MarkSuccess", mock.Anything, testVideoID, "resumed").Return(nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Retry(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)

	// The download is skipped when the audio artifact is still on disk.
	dl.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestPipeline_Transcribe_InvalidInput(t *testing.T) {
	p := newTestPipeline(new(mockVideoRepo), new(mockDownloader), new(mockTranscriber))

	_, err := p.Transcribe(context.Background(), "not a video")
	assert.Error(t, err)
}

func TestPipeline_Transcribe_AcceptsWatchURL(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	video := models.NewVideo(testVideoID)
	video.Status = models.StatusSuccess
	video.Transcript = strPtr("hello world")

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(video, nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), "https://www.youtube.com/watch?v="+testVideoID)

	require.NoError(t, err)
	assert.Equal(t, testVideoID, result.VideoID)
	assert.True(t, result.FromCache)
}

func TestPipeline_BulkTranscribe_FailureIsolation(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	goodID := "aaaaaaaaaaa"
	badID := "bbbbbbbbbbb"

	cached := models.NewVideo(goodID)
	cached.Status = models.StatusSuccess
	cached.Transcript = strPtr("cached")

	repo.On("GetByVideoID", mock.Anything, goodID).Return(cached, nil).Once()

	repo.On("GetByVideoID", mock.Anything, badID).Return(nil, db.ErrNotFound).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	repo.On("AcquireForProcessing", mock.Anything, badID, mock.Anything, false).Return(true, nil).Once()
	dl.On("Download", mock.Anything, badID).
		Return("", (*models.VideoMetadata)(nil), errors.New("video unavailable")).Once()
	repo.On("MarkFailure", mock.Anything, badID, models.StatusFailed, mock.Anything).Return(nil).Once()

	p := newTestPipeline(repo, dl, tr)
	results := p.BulkTranscribe(context.Background(), []string{"not-a-video!", goodID, badID})

	require.Len(t, results, 3)

	byID := make(map[string]*Result, len(results))
	for _, r := range results {
		byID[r.VideoID] = r
	}

	assert.Equal(t, models.StatusFailed, byID["not-a-video!"].Status)
	assert.Equal(t, models.StatusSuccess, byID[goodID].Status)
	assert.True(t, byID[goodID].FromCache)
	assert.Equal(t, models.StatusFailed, byID[badID].Status)

	repo.AssertExpectations(t)
}

func TestPipeline_BulkTranscribe_Deduplicates(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	cached := models.NewVideo(testVideoID)
	cached.Status = models.StatusSuccess
	cached.Transcript = strPtr("cached")

	// A single lookup despite the ID appearing twice in the request.
	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(cached, nil).Once()

	p := newTestPipeline(repo, dl, tr)
	results := p.BulkTranscribe(context.Background(), []string{
		testVideoID,
		"https://youtu.be/" + testVideoID,
	})

	require.Len(t, results, 1)
	repo.AssertExpectations(t)
}

func TestPipeline_RetryRateLimited(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	audioPath := filepath.Join(t.TempDir(), "ratelimited1.m4a")
	require.NoError(t, os.WriteFile(audioPath, []byte("audio"), 0o644))

	limitedID := "rateLtd0001"
	limited := models.NewVideo(limitedID)
	limited.Status = models.StatusRateLimited
	limited.ErrorMessage = strPtr("HTTP 429")

	repo.On("ListByStatus", mock.Anything, models.StatusRateLimited, 100).
		Return([]*models.Video{limited}, nil).Once()
	repo.On("GetByVideoID", mock.Anything, limitedID).Return(limited, nil).Once()
	repo.On("AcquireForProcessing", mock.Anything, limitedID, mock.Anything, true).Return(true, nil).Once()
	dl.On("Download", mock.Anything, limitedID).Return(audioPath, (*models.VideoMetadata)(nil), nil).Once()
	tr.On("TranscribeFile", mock.Anything, audioPath, "audio/mp4").Return("finally", nil).Once()
	repo.On("MarkSuccess", mock.Anything, limitedID, "finally").Return(nil).Once()

	p := newTestPipeline(repo, dl, tr)
	results, err := p.RetryRateLimited(context.Background(), 0)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusSuccess, results[0].Status)
	repo.AssertExpectations(t)
}

func TestPipeline_GetStatus_DoesNotCreate(t *testing.T) {
	repo := new(mockVideoRepo)

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(nil, db.ErrNotFound).Once()

	p := newTestPipeline(repo, new(mockDownloader), new(mockTranscriber))
	_, err := p.GetStatus(context.Background(), testVideoID)

	assert.True(t, db.IsNotFound(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPipeline_SetIgnored(t *testing.T) {
	repo := new(mockVideoRepo)

	video := models.NewVideo(testVideoID)
	video.Ignored = true

	repo.On("SetIgnored", mock.Anything, testVideoID, true).Return(nil).Once()
	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(video, nil).Once()

	p := newTestPipeline(repo, new(mockDownloader), new(mockTranscriber))
	got, err := p.SetIgnored(context.Background(), testVideoID, true)

	require.NoError(t, err)
	assert.True(t, got.Ignored)
	repo.AssertExpectations(t)
}

func TestPipeline_IgnoredVideoStillTranscribable(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	// mark_ignored is a listing concern; a cached transcript is returned
	// regardless of the flag.
	video := models.NewVideo(testVideoID)
	video.Status = models.StatusSuccess
	video.Transcript = strPtr("still here")
	video.Ignored = true

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(video, nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.Equal(t, "still here", result.Transcript)
}

func TestPipeline_Transcribe_CreateRaceFoldsToWinner(t *testing.T) {
	repo := new(mockVideoRepo)
	dl := new(mockDownloader)
	tr := new(mockTranscriber)

	winner := models.NewVideo(testVideoID)
	winner.Status = models.StatusSuccess
	winner.Transcript = strPtr("raced")

	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(nil, db.ErrNotFound).Once()
	repo.On("Create", mock.Anything, mock.Anything).Return(db.ErrDuplicateKey).Once()
	repo.On("GetByVideoID", mock.Anything, testVideoID).Return(winner, nil).Once()

	p := newTestPipeline(repo, dl, tr)
	result, err := p.Transcribe(context.Background(), testVideoID)

	require.NoError(t, err)
	assert.True(t, result.FromCache)
	assert.Equal(t, "raced", result.Transcript)
	dl.AssertNotCalled(t, "Download", mock.Anything, mock.Anything)
}
