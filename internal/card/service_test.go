package card

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/cardsum/cardsum_service/internal/model"
	"github.com/cardsum/cardsum_service/internal/quota"
	"github.com/cardsum/cardsum_service/internal/render"
	"github.com/cardsum/cardsum_service/internal/summarize"
)

type fakeLedger struct {
	mu        sync.Mutex
	remaining int
	used      int
	deducts   int
	adds      int
}

func (f *fakeLedger) Deduct(_ context.Context, _ int64, points int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining < points {
		return 0, quota.ErrInsufficientQuota
	}
	f.remaining -= points
	f.used += points
	f.deducts++
	return f.remaining, nil
}

func (f *fakeLedger) Add(_ context.Context, _ int64, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remaining += points
	f.adds++
	return nil
}

func (f *fakeLedger) Get(_ context.Context, userID int64) (model.QuotaAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.QuotaAccount{UserID: userID, RemainingPoints: f.remaining, UsedPoints: f.used}, nil
}

func (f *fakeLedger) balance() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remaining
}

type fakeSummarizer struct {
	mu    sync.Mutex
	html  string
	err   error
	calls int
}

func (f *fakeSummarizer) Summarize(_ context.Context, article, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if strings.TrimSpace(article) == "" {
		return "", summarize.ErrEmptyInput
	}
	if f.err != nil {
		return "", f.err
	}
	return f.html, nil
}

type fakeRenderer struct {
	mu        sync.Mutex
	png       []byte
	err       error
	calls     int
	lastWidth int
}

func (f *fakeRenderer) Render(_ context.Context, _ string, width, _ int, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastWidth = width
	if f.err != nil {
		return nil, f.err
	}
	return f.png, nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeStore) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = data
	return "http://test/storage/" + key, nil
}

func (f *fakeStore) Read(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[key]
	if !ok {
		return nil, errors.New("not found")
	}
	return b, nil
}

type fakeHistory struct {
	mu     sync.Mutex
	recs   []model.CardRecord
	err    error
	nextID int64
}

func (f *fakeHistory) Insert(_ context.Context, rec *model.CardRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.nextID++
	rec.ID = f.nextID
	f.recs = append(f.recs, *rec)
	return f.nextID, nil
}

func (f *fakeHistory) ListByUser(_ context.Context, userID int64) ([]model.CardRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.CardRecord
	for i := len(f.recs) - 1; i >= 0; i-- {
		if f.recs[i].UserID == userID {
			out = append(out, f.recs[i])
		}
	}
	return out, nil
}

func (f *fakeHistory) Latest(_ context.Context, userID int64) (model.CardRecord, error) {
	recs, _ := f.ListByUser(context.Background(), userID)
	if len(recs) == 0 {
		return model.CardRecord{}, errors.New("no rows")
	}
	return recs[0], nil
}

func (f *fakeHistory) GetByID(_ context.Context, id int64) (model.CardRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.recs {
		if r.ID == id {
			return r, nil
		}
	}
	return model.CardRecord{}, errors.New("no rows")
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

type ServiceSuite struct {
	suite.Suite
	ledger     *fakeLedger
	summarizer *fakeSummarizer
	renderer   *fakeRenderer
	store      *fakeStore
	history    *fakeHistory
	svc        *Service
}

func (s *ServiceSuite) SetupTest() {
	s.ledger = &fakeLedger{remaining: 5}
	s.summarizer = &fakeSummarizer{html: "<h1>Summary</h1><p>body</p>"}
	s.renderer = &fakeRenderer{png: testPNG(s.T(), 720, 1200)}
	s.store = &fakeStore{}
	s.history = &fakeHistory{}
	s.svc = NewService(s.ledger, s.summarizer, s.renderer, s.store, s.history, nil)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) TestGenerate_Success() {
	art, err := s.svc.Generate(context.Background(), 1, "a perfectly fine article", summarize.TypeVertical)

	s.NoError(err)
	s.Equal(4, art.RemainingPoints)
	s.Equal(4, s.ledger.balance(), "exactly one point consumed net")
	s.Equal(1, s.ledger.deducts)
	s.Equal(0, s.ledger.adds)

	s.Equal(model.OrientationVertical, art.Record.Orientation)
	s.Equal(720, s.renderer.lastWidth)
	s.NotEmpty(art.Record.ImageURL)
	s.NotEmpty(art.Record.HTMLFileURL)
	s.NotEmpty(art.Record.ThumbnailURL)
	s.Len(s.history.recs, 1)
	s.Equal("a perfectly fine article", art.Record.PromptExcerpt)
}

func (s *ServiceSuite) TestGenerate_HorizontalWidth() {
	s.renderer.png = testPNG(s.T(), 1280, 640)

	art, err := s.svc.Generate(context.Background(), 1, "wide article", summarize.TypeHorizontal)
	s.NoError(err)
	s.Equal(1280, s.renderer.lastWidth)
	s.Equal(model.OrientationHorizontal, art.Record.Orientation)
}

func (s *ServiceSuite) TestGenerate_BulletUsesVerticalLayout() {
	art, err := s.svc.Generate(context.Background(), 1, "bullet article", summarize.TypeBullet)
	s.NoError(err)
	s.Equal(720, s.renderer.lastWidth)
	s.Equal(model.OrientationVertical, art.Record.Orientation)
}

func (s *ServiceSuite) TestGenerate_EmptyInput_NoDeduction() {
	_, err := s.svc.Generate(context.Background(), 1, "   \n ", summarize.TypeVertical)

	s.ErrorIs(err, summarize.ErrEmptyInput)
	s.Equal(5, s.ledger.balance())
	s.Equal(0, s.ledger.deducts)
	s.Equal(0, s.summarizer.calls)
	s.Equal(0, s.renderer.calls)
}

func (s *ServiceSuite) TestGenerate_ZeroPoints_NoDownstreamCalls() {
	s.ledger.remaining = 0

	_, err := s.svc.Generate(context.Background(), 1, "valid article", summarize.TypeVertical)

	s.ErrorIs(err, quota.ErrInsufficientQuota)
	s.Equal(0, s.summarizer.calls, "summarization must not be contacted")
	s.Equal(0, s.renderer.calls, "render must not be contacted")
	s.Equal(0, s.ledger.deducts)
}

func (s *ServiceSuite) TestGenerate_SummarizeFails_Refunded() {
	s.summarizer.err = &summarize.UpstreamError{Status: 500, Message: "model unavailable"}

	_, err := s.svc.Generate(context.Background(), 1, "valid article", summarize.TypeVertical)

	var ue *summarize.UpstreamError
	s.ErrorAs(err, &ue)
	s.Equal(5, s.ledger.balance(), "net point change must be zero")
	s.Equal(1, s.ledger.deducts)
	s.Equal(1, s.ledger.adds)
	s.Equal(0, s.renderer.calls)
	s.Empty(s.history.recs)
}

func (s *ServiceSuite) TestGenerate_RenderTimeout_Refunded() {
	s.renderer.err = render.ErrRenderTimeout

	_, err := s.svc.Generate(context.Background(), 1, "valid article", summarize.TypeVertical)

	s.ErrorIs(err, render.ErrRenderTimeout)
	s.Equal(5, s.ledger.balance(), "net point change must be zero")
	s.Equal(1, s.ledger.deducts)
	s.Equal(1, s.ledger.adds)
	s.Empty(s.history.recs)
}

func (s *ServiceSuite) TestGenerate_PersistFails_NoRefund_ArtifactReturned() {
	s.history.err = errors.New("db gone")

	art, err := s.svc.Generate(context.Background(), 1, "valid article", summarize.TypeVertical)

	var pe *PersistError
	s.ErrorAs(err, &pe)
	s.NotNil(art, "the produced card is still handed back")
	s.NotEmpty(art.PNG)
	s.Equal("<h1>Summary</h1><p>body</p>", art.HTML)

	s.Equal(4, s.ledger.balance(), "the point stays spent")
	s.Equal(1, s.ledger.deducts)
	s.Equal(0, s.ledger.adds)
}

func (s *ServiceSuite) TestGenerate_StoreFails_NoRefund() {
	s.store.err = errors.New("disk full")

	art, err := s.svc.Generate(context.Background(), 1, "valid article", summarize.TypeVertical)

	var pe *PersistError
	s.ErrorAs(err, &pe)
	s.NotNil(art)
	s.Equal(4, s.ledger.balance())
}

func (s *ServiceSuite) TestGenerate_ConcurrentLastPoint() {
	s.ledger.remaining = 1

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.Generate(context.Background(), 1, "valid article", summarize.TypeVertical)
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, quota.ErrInsufficientQuota):
			short++
		default:
			s.FailNowf("unexpected error", "%v", err)
		}
	}
	s.Equal(1, ok, "exactly one request wins the last point")
	s.Equal(1, short)
	s.Equal(0, s.ledger.balance())
}
