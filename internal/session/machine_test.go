package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nileshh/whatsapp-media-sync/internal/browser"
	"github.com/nileshh/whatsapp-media-sync/internal/common"
	"github.com/nileshh/whatsapp-media-sync/internal/logging"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type fakeElement struct{ selector string }

func (e *fakeElement) Selector() string { return e.selector }

// fakeRenderer scripts page state: which selectors resolve, the QR
// payload, and page metadata.
type fakeRenderer struct {
	visible   map[string]bool
	qrData    string
	title     string
	openErr   error
	openedURL string
	quits     int
}

func (r *fakeRenderer) Open(ctx context.Context, url string) error {
	r.openedURL = url
	return r.openErr
}

func (r *fakeRenderer) Find(ctx context.Context, selector string, timeout time.Duration) (browser.Element, error) {
	if r.visible[selector] {
		return &fakeElement{selector: selector}, nil
	}
	return nil, fmt.Errorf("%w: %s", common.ErrProbeTimeout, selector)
}

func (r *fakeRenderer) Execute(ctx context.Context, script string, el browser.Element) (string, error) {
	return r.qrData, nil
}

func (r *fakeRenderer) Title(ctx context.Context) (string, error) { return r.title, nil }

func (r *fakeRenderer) Content(ctx context.Context, substring string) (bool, error) {
	return false, nil
}

func (r *fakeRenderer) Screenshot(ctx context.Context, path string) error { return nil }
func (r *fakeRenderer) Refresh(ctx context.Context) error                 { return nil }

func (r *fakeRenderer) Quit(ctx context.Context) error {
	r.quits++
	return nil
}

type fakeFactory struct {
	renderers []*fakeRenderer
	err       error
	calls     int
}

func (f *fakeFactory) New(ctx context.Context) (browser.Renderer, error) {
	if f.err != nil {
		return nil, f.err
	}
	r := f.renderers[f.calls%len(f.renderers)]
	f.calls++
	return r, nil
}

// fakeSessions is an in-memory sessions.Repository.
type fakeSessions struct {
	records map[string]*models.SessionRecord
	nextID  int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{records: make(map[string]*models.SessionRecord)}
}

func (s *fakeSessions) Create(ctx context.Context, record *models.SessionRecord) error {
	s.nextID++
	record.ID = fmt.Sprintf("s%d", s.nextID)
	s.records[record.ID] = record
	return nil
}

func (s *fakeSessions) GetByID(ctx context.Context, id string) (*models.SessionRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rec, nil
}

func (s *fakeSessions) FindActive(ctx context.Context, owner string) (*models.SessionRecord, error) {
	for _, rec := range s.records {
		if rec.Owner == owner &&
			(rec.Status == models.SessionQRPending || rec.Status == models.SessionAuthenticated) {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *fakeSessions) UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error {
	rec, ok := s.records[id]
	if !ok {
		return common.ErrNotFound
	}
	rec.Status = status
	return nil
}

func (s *fakeSessions) MergePayload(ctx context.Context, id string, data map[string]any) error {
	rec, ok := s.records[id]
	if !ok {
		return common.ErrNotFound
	}
	if rec.Payload == nil {
		rec.Payload = map[string]any{}
	}
	for k, v := range data {
		rec.Payload[k] = v
	}
	return nil
}

func newTestMachine(factory *fakeFactory, repo *fakeSessions) *Machine {
	return NewMachine("owner1", factory, repo, "https://web.whatsapp.com/", 10*time.Millisecond, testLogger())
}

func TestStart_AlreadyAuthenticated(t *testing.T) {
	r := &fakeRenderer{visible: map[string]bool{"[data-icon='chat']": true}}
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{r}}, repo)

	result, err := m.Start(context.Background())
	require.NoError(t, err)

	assert.True(t, result.AlreadyAuthenticated)
	assert.False(t, result.QRAvailable)
	assert.Equal(t, "https://web.whatsapp.com/", r.openedURL)
	assert.Equal(t, models.SessionAuthenticated, repo.records[result.SessionID].Status)
}

func TestStart_PresentsQR(t *testing.T) {
	r := &fakeRenderer{
		visible: map[string]bool{"canvas": true},
		qrData:  "data:image/png;base64,QR",
	}
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{r}}, repo)

	result, err := m.Start(context.Background())
	require.NoError(t, err)

	assert.False(t, result.AlreadyAuthenticated)
	assert.True(t, result.QRAvailable)
	assert.Equal(t, "data:image/png;base64,QR", result.QRData)

	rec := repo.records[result.SessionID]
	assert.Equal(t, models.SessionQRPending, rec.Status)
	assert.Equal(t, "data:image/png;base64,QR", rec.Payload[models.PayloadQRCode])
}

func TestStart_QRTimeout(t *testing.T) {
	r := &fakeRenderer{visible: map[string]bool{}}
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{r}}, repo)

	_, err := m.Start(context.Background())
	require.ErrorIs(t, err, common.ErrProbeTimeout)

	require.Len(t, repo.records, 1)
	for _, rec := range repo.records {
		assert.Equal(t, models.SessionErrored, rec.Status)
	}
}

func TestStart_FactoryFailureCreatesNoRecord(t *testing.T) {
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{err: errors.New("no chrome")}, repo)

	_, err := m.Start(context.Background())
	require.Error(t, err)
	assert.Empty(t, repo.records)
}

func TestStart_ClosesPriorHandle(t *testing.T) {
	first := &fakeRenderer{visible: map[string]bool{"[data-icon='chat']": true}}
	second := &fakeRenderer{visible: map[string]bool{"[data-icon='chat']": true}}
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{first, second}}, repo)

	_, err := m.Start(context.Background())
	require.NoError(t, err)
	_, err = m.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first.quits)
	assert.Equal(t, 0, second.quits)
}

func TestStart_RetiresStaleActiveRecord(t *testing.T) {
	r := &fakeRenderer{visible: map[string]bool{"[data-icon='chat']": true}}
	repo := newFakeSessions()
	stale := &models.SessionRecord{Owner: "owner1", Status: models.SessionQRPending}
	require.NoError(t, repo.Create(context.Background(), stale))
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{r}}, repo)

	result, err := m.Start(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.SessionClosed, repo.records[stale.ID].Status)
	assert.Equal(t, models.SessionAuthenticated, repo.records[result.SessionID].Status)
}

func TestPoll_RequiresLiveHandle(t *testing.T) {
	m := newTestMachine(&fakeFactory{}, newFakeSessions())

	_, err := m.Poll(context.Background(), "s1")
	assert.ErrorIs(t, err, common.ErrCapabilityUnavailable)
}

func TestPoll_WrongSessionID(t *testing.T) {
	r := &fakeRenderer{visible: map[string]bool{"canvas": true}, qrData: "qr"}
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{r}}, repo)

	_, err := m.Start(context.Background())
	require.NoError(t, err)

	_, err = m.Poll(context.Background(), "other-session")
	assert.ErrorIs(t, err, common.ErrCapabilityUnavailable)
}

func TestPoll_DetectsAuthentication(t *testing.T) {
	r := &fakeRenderer{visible: map[string]bool{"canvas": true}, qrData: "qr-1"}
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{r}}, repo)

	start, err := m.Start(context.Background())
	require.NoError(t, err)

	// The user scans the QR; the page flips to the chat view.
	r.visible = map[string]bool{"[data-icon='chat']": true}

	result, err := m.Poll(context.Background(), start.SessionID)
	require.NoError(t, err)

	assert.True(t, result.Authenticated)
	assert.Equal(t, "qr-1", result.QRData)
	assert.Equal(t, models.SessionAuthenticated, repo.records[start.SessionID].Status)
}

func TestPoll_RefreshesQR(t *testing.T) {
	r := &fakeRenderer{visible: map[string]bool{"canvas": true}, qrData: "qr-1"}
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{r}}, repo)

	start, err := m.Start(context.Background())
	require.NoError(t, err)

	r.qrData = "qr-2"
	result, err := m.Poll(context.Background(), start.SessionID)
	require.NoError(t, err)

	assert.False(t, result.Authenticated)
	assert.Equal(t, "qr-2", result.QRData)
	assert.Equal(t, "qr-2", repo.records[start.SessionID].Payload[models.PayloadQRCode])
}

func TestClose_Idempotent(t *testing.T) {
	r := &fakeRenderer{visible: map[string]bool{"canvas": true}, qrData: "qr"}
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{r}}, repo)

	start, err := m.Start(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.Close(context.Background(), start.SessionID))
	require.NoError(t, m.Close(context.Background(), start.SessionID))

	assert.Equal(t, 1, r.quits)
	assert.Equal(t, models.SessionClosed, repo.records[start.SessionID].Status)
	assert.Nil(t, m.Renderer())
}

func TestShutdown_ClosesSession(t *testing.T) {
	r := &fakeRenderer{visible: map[string]bool{"canvas": true}, qrData: "qr"}
	repo := newFakeSessions()
	m := newTestMachine(&fakeFactory{renderers: []*fakeRenderer{r}}, repo)

	start, err := m.Start(context.Background())
	require.NoError(t, err)

	m.Shutdown(context.Background())

	assert.Equal(t, 1, r.quits)
	assert.Equal(t, models.SessionClosed, repo.records[start.SessionID].Status)
}
