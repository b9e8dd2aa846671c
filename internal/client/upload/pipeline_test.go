package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/client/api"
	"github.com/dmitrijs2005/fieldrec/internal/client/backup"
	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/queue"
	"github.com/dmitrijs2005/fieldrec/internal/client/reconcile"
	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/kv"
	"github.com/dmitrijs2005/fieldrec/internal/client/store"
	"github.com/dmitrijs2005/fieldrec/internal/common"
	"github.com/dmitrijs2005/fieldrec/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistrar struct {
	mu   sync.Mutex
	reqs []api.RegisterRequest
	fn   func(api.RegisterRequest) (*api.RegisterResponse, error)
}

func (f *fakeRegistrar) RegisterRecording(_ context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(req)
	}
	return &api.RegisterResponse{UrlGrabacion: "https://srv/" + req.Identificacion}, nil
}

func (f *fakeRegistrar) idents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.reqs {
		out = append(out, r.Identificacion)
	}
	return out
}

type fakeHistory struct{ calls int }

func (h *fakeHistory) Load(context.Context, string) (reconcile.Result, error) {
	h.calls++
	return reconcile.Result{State: reconcile.StateOnlineMerged}, nil
}

type fakeUploader struct {
	url string
	err error
}

func (u fakeUploader) Upload(context.Context, string) (string, error) { return u.url, u.err }

type fixture struct {
	q    *queue.Queue
	dir  string
	reg  *fakeRegistrar
	hist *fakeHistory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	p := store.NewProvider(filepath.Join(dir, "fieldrec.db"), logging.NewNop(), nil)
	t.Cleanup(func() { _ = p.Reset() })

	b := backup.New(kv.NewMemoryStore(), logging.NewNop())
	return &fixture{
		q:    queue.New(p, b, logging.NewNop()),
		dir:  dir,
		reg:  &fakeRegistrar{},
		hist: &fakeHistory{},
	}
}

func (f *fixture) pipeline(online bool, cfg Config, opts ...Option) *Pipeline {
	return New(f.q, f.reg, f.hist, func() bool { return online }, func() string { return "agent1" },
		cfg, logging.NewNop(), opts...)
}

// addRecording queues a recording; the audio file is created unless missing.
func (f *fixture) addRecording(t *testing.T, ident string, missing bool) int64 {
	t.Helper()
	path := filepath.Join(f.dir, ident+".m4a")
	if !missing {
		require.NoError(t, os.WriteFile(path, []byte("audio-"+ident), 0o600))
	}
	rec := models.NewRecording("file://"+path, ident,
		time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local), time.Date(2025, 3, 1, 9, 1, 0, 0, time.Local))
	rec.NumeroOperacion = "OP-" + ident
	id, err := f.q.EnqueueRecording(context.Background(), rec)
	require.NoError(t, err)
	require.Positive(t, id)
	return id
}

func (f *fixture) confirmClient(t *testing.T, idCliente int64, ident string) {
	t.Helper()
	_, err := f.q.SaveCatalog(context.Background(), []models.CatalogEntry{{
		IdCliente:  idCliente,
		ClientInfo: models.ClientInfo{Identificacion: ident, NumeroOperacion: "OP-" + ident, IdExterno: "EXT-" + ident},
	}})
	require.NoError(t, err)
}

func TestSendPending_MixedBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.addRecording(t, "A", false) // confirmed, file present
	f.addRecording(t, "B", true)  // confirmed, file gone
	f.addRecording(t, "C", false) // not confirmed
	f.confirmClient(t, 1, "A")
	f.confirmClient(t, 2, "B")

	var counts []int
	rep, err := f.pipeline(true, Config{Pais: "PE"}, WithCountListener(func(n int) { counts = append(counts, n) })).SendPending(ctx)
	require.NoError(t, err)

	assert.Equal(t, Report{Pending: 3, Sent: 1, Deleted: 1, Skipped: 1, Remaining: 1, Outcome: OutcomeSent}, rep)
	assert.Equal(t, "1 audio(s) enviados.", rep.Message())
	assert.Equal(t, []string{"A"}, f.reg.idents())
	assert.Equal(t, 1, f.hist.calls)
	assert.Equal(t, []int{1, 1}, counts)

	pending, err := f.q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "C", pending[0].Identificacion)

	synced, err := f.q.SyncedLocal(ctx)
	require.NoError(t, err)
	require.Len(t, synced, 1)
	assert.Equal(t, "A", synced[0].Identificacion)

	st, err := f.q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.Pending+st.Synced)
}

func TestSendPending_RequestPayload(t *testing.T) {
	f := newFixture(t)
	f.addRecording(t, "A", false)
	f.confirmClient(t, 42, "A")

	_, err := f.pipeline(true, Config{Pais: "PE"}).SendPending(context.Background())
	require.NoError(t, err)

	require.Len(t, f.reg.reqs, 1)
	req := f.reg.reqs[0]
	assert.Equal(t, int64(42), req.IdCliente)
	assert.Equal(t, "EXT-A", req.IdExterno)
	assert.Equal(t, "PE", req.CodigoPais)
	assert.Equal(t, "agent1", req.UsuarioCreacion)
	assert.Equal(t, "2025-03-01T09:01:00", req.FechaFinGrabacion)
	assert.True(t, req.EsGrabacionLocal)
	assert.Empty(t, req.UrlAudio)

	raw, err := base64.StdEncoding.DecodeString(req.AudioBase64)
	require.NoError(t, err)
	assert.Equal(t, "audio-A", string(raw))
}

func TestSendPending_MissingFileNeverRegistered(t *testing.T) {
	f := newFixture(t)
	f.addRecording(t, "B", true)
	f.confirmClient(t, 2, "B")

	rep, err := f.pipeline(true, Config{}).SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Deleted)
	assert.Empty(t, f.reg.idents())
	assert.Zero(t, f.q.CountPending(context.Background()))
	assert.Equal(t, OutcomeNothingSent, rep.Outcome)
}

func TestSendPending_Offline(t *testing.T) {
	f := newFixture(t)
	f.addRecording(t, "A", false)

	rep, err := f.pipeline(false, Config{}).SendPending(context.Background())
	require.ErrorIs(t, err, common.ErrNoConnection)
	assert.Equal(t, "Sin conexión", UserMessage(rep, err))
	assert.Equal(t, 1, f.q.CountPending(context.Background()))
}

func TestSendPending_NothingPending(t *testing.T) {
	f := newFixture(t)
	rep, err := f.pipeline(true, Config{}).SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingPending, rep.Outcome)
	assert.Equal(t, "No hay audios pendientes.", UserMessage(rep, err))
}

func TestSendPending_FailuresLeaveRowsPending(t *testing.T) {
	f := newFixture(t)
	f.addRecording(t, "A", false)
	f.addRecording(t, "B", false)
	f.confirmClient(t, 1, "A")
	f.confirmClient(t, 2, "B")

	f.reg.fn = func(req api.RegisterRequest) (*api.RegisterResponse, error) {
		if req.Identificacion == "A" {
			return nil, api.ErrUnavailable
		}
		return &api.RegisterResponse{}, nil // no success marker
	}

	rep, err := f.pipeline(true, Config{}).SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 2, rep.Remaining)
	assert.Equal(t, "No se pudo enviar ningún audio.", rep.Message())
	assert.Equal(t, []string{"A", "B"}, f.reg.idents())
}

func TestSendPending_PurgeBeforeSendPolicy(t *testing.T) {
	f := newFixture(t)
	f.addRecording(t, "A", false)
	f.confirmClient(t, 1, "A")

	rep, err := f.pipeline(true, Config{PurgeBeforeSend: true}).SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingPending, rep.Outcome)
	assert.Empty(t, f.reg.idents())
	assert.Zero(t, f.q.CountPending(context.Background()))
}

func TestSendPending_WithStorageUploader(t *testing.T) {
	f := newFixture(t)
	f.addRecording(t, "A", false)
	f.addRecording(t, "B", false)
	f.confirmClient(t, 1, "A")
	f.confirmClient(t, 2, "B")

	rep, err := f.pipeline(true, Config{}, WithUploader(fakeUploader{url: "https://cdn/a.m4a"})).SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Sent)
	for _, req := range f.reg.reqs {
		assert.Equal(t, "https://cdn/a.m4a", req.UrlAudio)
		assert.Empty(t, req.AudioBase64)
	}
}

func TestSendPending_StorageFailureIsPerRow(t *testing.T) {
	f := newFixture(t)
	f.addRecording(t, "A", false)
	f.confirmClient(t, 1, "A")

	rep, err := f.pipeline(true, Config{}, WithUploader(fakeUploader{err: errors.New("507")})).SendPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Empty(t, f.reg.idents())
	assert.Equal(t, 1, rep.Remaining)
}

func TestSendPending_SyncedRowIsNotResent(t *testing.T) {
	f := newFixture(t)
	f.addRecording(t, "A", false)
	f.confirmClient(t, 1, "A")
	p := f.pipeline(true, Config{})

	_, err := p.SendPending(context.Background())
	require.NoError(t, err)
	rep, err := p.SendPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, OutcomeNothingPending, rep.Outcome)
	assert.Equal(t, []string{"A"}, f.reg.idents())
}
