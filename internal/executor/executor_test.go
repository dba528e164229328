// File: internal/executor/executor_test.go
package executor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/ventriloquist/api/schemas"
	"github.com/xkilldash9x/ventriloquist/internal/config"
	"github.com/xkilldash9x/ventriloquist/internal/registry"
	"github.com/xkilldash9x/ventriloquist/internal/transport"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTransport satisfies transport.Transport with canned page answers.
type fakeTransport struct {
	mu          sync.Mutex
	lastURL     string
	navigateErr error
	connectErr  error

	pageURL   string
	pageTitle string
}

func (f *fakeTransport) Backend() schemas.BackendKind { return schemas.BackendLocal }

func (f *fakeTransport) Connect(ctx context.Context) (*transport.Browser, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	bctx, cancel := context.WithCancel(context.Background())
	b := transport.NewBrowser(bctx, cancel, nil, "")
	b.SetShutdownFunc(func(context.Context) error { return nil })
	return b, nil
}

func (f *fakeTransport) Liveness(ctx context.Context, b *transport.Browser) error { return nil }

func (f *fakeTransport) NewPage(ctx context.Context, b *transport.Browser) (*transport.Page, error) {
	return &transport.Page{ID: transport.NewPageID(), Ctx: context.Background()}, nil
}

func (f *fakeTransport) NavigateTo(ctx context.Context, p *transport.Page, url string, wait schemas.WaitPolicy) (*transport.Navigation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.navigateErr != nil {
		return nil, f.navigateErr
	}
	f.lastURL = url
	f.pageURL = url
	status := int64(200)
	return &transport.Navigation{Status: &status, FinalURL: url}, nil
}

func (f *fakeTransport) PageInfo(ctx context.Context, p *transport.Page, nav *transport.Navigation) (schemas.PageInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info := schemas.PageInfo{URL: f.pageURL, Title: f.pageTitle}
	if nav != nil {
		info.Status = nav.Status
	}
	return info, nil
}

func (f *fakeTransport) Screenshot(ctx context.Context, p *transport.Page) (string, error) {
	return "data:image/png;base64,ZmFrZQ==", nil
}

func testRunner(t *testing.T, tr transport.Transport) (*Runner, *registry.Registry) {
	t.Helper()
	cfg := config.NewDefaultConfig()
	reg := registry.New(cfg.Session(), zaptest.NewLogger(t))
	r := New(cfg, reg, zaptest.NewLogger(t))
	r.newTransport = func(schemas.Credentials) (transport.Transport, error) { return tr, nil }
	return r, reg
}

func localCommon(id string) Common {
	return Common{Session: SessionParams{
		SessionID:   id,
		Credentials: schemas.Credentials{Kind: schemas.BackendLocal},
	}}
}

func TestResolveIDPrecedence(t *testing.T) {
	c := Common{Session: SessionParams{SessionID: "explicit", InboundID: "inbound"}}
	assert.Equal(t, "explicit", c.resolveID())

	c = Common{Session: SessionParams{InboundID: "inbound"}}
	assert.Equal(t, "inbound", c.resolveID())

	c = Common{}
	first := c.resolveID()
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, c.resolveID(), "absent both ids, every call mints a fresh one")
}

func TestOpenNavigatesAndReportsSession(t *testing.T) {
	fake := &fakeTransport{pageTitle: "Example Domain"}
	runner, reg := testRunner(t, fake)
	defer reg.CloseAll(context.Background())

	res, err := runner.Open(context.Background(), OpenParams{
		Common: localCommon("run-1"),
		URL:    "https://example.com",
	})
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "open", res.Operation)
	assert.Equal(t, "run-1", res.SessionID)
	assert.Equal(t, "https://example.com", res.URL)
	assert.Equal(t, "Example Domain", res.Title)
	assert.Equal(t, map[string]any{"status": int64(200)}, res.Data)
	assert.NotEmpty(t, res.Timestamp)
	assert.Equal(t, 1, reg.Len())
}

func TestOpenCapturesScreenshot(t *testing.T) {
	fake := &fakeTransport{}
	runner, reg := testRunner(t, fake)
	defer reg.CloseAll(context.Background())

	common := localCommon("run-1")
	common.CaptureScreenshot = true
	res, err := runner.Open(context.Background(), OpenParams{Common: common, URL: "https://example.com"})
	require.NoError(t, err)
	assert.Contains(t, res.Screenshot, "data:image/png;base64,")
}

func TestSessionErrorWithoutCredentials(t *testing.T) {
	runner, _ := testRunner(t, &fakeTransport{})

	_, err := runner.Open(context.Background(), OpenParams{
		Common: Common{Session: SessionParams{SessionID: "never-created"}},
		URL:    "https://example.com",
	})
	require.Error(t, err)
	assert.True(t, transport.IsKind(err, transport.KindSession),
		"missing session without credentials must surface as a session error")
}

func TestContinueOnFailReturnsStructuredFailure(t *testing.T) {
	fake := &fakeTransport{navigateErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	runner, reg := testRunner(t, fake)
	defer reg.CloseAll(context.Background())

	common := localCommon("run-1")
	common.ContinueOnFail = true
	res, err := runner.Open(context.Background(), OpenParams{Common: common, URL: "https://bad.invalid"})

	require.NoError(t, err, "continue-on-fail must not propagate the error")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "ERR_NAME_NOT_RESOLVED")
}

func TestFailureClosesSession(t *testing.T) {
	fake := &fakeTransport{}
	runner, reg := testRunner(t, fake)

	_, err := runner.Open(context.Background(), OpenParams{Common: localCommon("run-1"), URL: "https://example.com"})
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	fake.mu.Lock()
	fake.navigateErr = errors.New("target crashed")
	fake.mu.Unlock()

	_, err = runner.Open(context.Background(), OpenParams{Common: localCommon("run-1"), URL: "https://example.com/next"})
	require.Error(t, err)
	assert.Equal(t, 0, reg.Len(), "a failed operation must not leave its session behind")
}

func TestCloseModes(t *testing.T) {
	fake := &fakeTransport{}
	runner, reg := testRunner(t, fake)

	for _, id := range []string{"s-1", "s-2", "s-3"} {
		_, err := runner.Open(context.Background(), OpenParams{Common: localCommon(id), URL: "https://example.com"})
		require.NoError(t, err)
	}
	require.Equal(t, 3, reg.Len())

	t.Run("One", func(t *testing.T) {
		res, err := runner.Close(context.Background(), CloseParams{Common: localCommon("s-1"), Mode: CloseOne})
		require.NoError(t, err)
		assert.True(t, res.Success)
		outcome, ok := res.Data.(closeOutcome)
		require.True(t, ok)
		assert.Equal(t, closeOutcome{Total: 1, Closed: 1, IDs: []string{"s-1"}}, outcome)
		assert.Equal(t, 2, reg.Len())
	})

	t.Run("One untracked", func(t *testing.T) {
		res, err := runner.Close(context.Background(), CloseParams{Common: localCommon("ghost"), Mode: CloseOne})
		require.NoError(t, err)
		outcome, ok := res.Data.(closeOutcome)
		require.True(t, ok)
		assert.Equal(t, 0, outcome.Closed, "an id that was never tracked must not count as closed")
		assert.Equal(t, 1, outcome.Total)
	})

	t.Run("List", func(t *testing.T) {
		res, err := runner.Close(context.Background(), CloseParams{
			Common:     Common{},
			Mode:       CloseList,
			SessionIDs: []string{"s-2", "ghost"},
		})
		require.NoError(t, err)
		assert.True(t, res.Success)
		outcome, ok := res.Data.(closeOutcome)
		require.True(t, ok)
		assert.Equal(t, 2, outcome.Total)
		assert.Equal(t, 1, outcome.Closed, "only tracked ids count toward the closed total")
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("All", func(t *testing.T) {
		res, err := runner.Close(context.Background(), CloseParams{Common: Common{}, Mode: CloseAllSessions})
		require.NoError(t, err)
		outcome, ok := res.Data.(closeOutcome)
		require.True(t, ok)
		assert.Equal(t, 1, outcome.Total)
		assert.Equal(t, 1, outcome.Closed)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("Unknown mode", func(t *testing.T) {
		_, err := runner.Close(context.Background(), CloseParams{Common: Common{}, Mode: "everything"})
		assert.ErrorContains(t, err, "unknown close mode")
	})
}

func TestResultEncodes(t *testing.T) {
	fake := &fakeTransport{pageTitle: "T"}
	runner, reg := testRunner(t, fake)
	defer reg.CloseAll(context.Background())

	res, err := runner.Open(context.Background(), OpenParams{Common: localCommon("run-1"), URL: "https://example.com"})
	require.NoError(t, err)

	raw, err := res.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"operation":"open"`)
	assert.Contains(t, string(raw), `"sessionId":"run-1"`)
	assert.Contains(t, string(raw), `"executionDurationMs"`)
}
