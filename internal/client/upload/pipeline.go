// Package upload drains the pending-recording queue to the server, one row
// at a time.
package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldrec/internal/client/api"
	"github.com/dmitrijs2005/fieldrec/internal/client/audiostore"
	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/queue"
	"github.com/dmitrijs2005/fieldrec/internal/client/reconcile"
	"github.com/dmitrijs2005/fieldrec/internal/common"
	"github.com/dmitrijs2005/fieldrec/internal/filex"
	"github.com/dmitrijs2005/fieldrec/internal/logging"
)

// Queue is the part of the pending queue the pipeline works on.
type Queue interface {
	ListPending(ctx context.Context) ([]models.PendingRecording, error)
	PurgePending(ctx context.Context) (int64, error)
	DeleteByID(ctx context.Context, id int64) error
	MarkSynced(ctx context.Context, id int64) error
	CountPending(ctx context.Context) int
	FindConfirmedClient(ctx context.Context, identificacion string) (*models.ClientRef, error)
}

type Registrar interface {
	RegisterRecording(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error)
}

type History interface {
	Load(ctx context.Context, userName string) (reconcile.Result, error)
}

type Config struct {
	Pais string
	// PurgeBeforeSend deletes every pending row before reading the batch.
	PurgeBeforeSend bool
}

type Pipeline struct {
	queue     Queue
	registrar Registrar
	uploader  audiostore.Uploader
	history   History
	online    func() bool
	user      func() string
	cfg       Config
	logger    logging.Logger

	onCount func(int)
}

type Option func(*Pipeline)

// WithUploader sends audio to storage first and registers its URL instead
// of the inline base64 payload.
func WithUploader(u audiostore.Uploader) Option {
	return func(p *Pipeline) { p.uploader = u }
}

// WithCountListener is told the pending count whenever it is refreshed.
func WithCountListener(fn func(int)) Option {
	return func(p *Pipeline) { p.onCount = fn }
}

func New(q Queue, r Registrar, h History, online func() bool, user func() string, cfg Config, logger logging.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		queue:     q,
		registrar: r,
		history:   h,
		online:    online,
		user:      user,
		cfg:       cfg,
		logger:    logger,
		onCount:   func(int) {},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type rowResult int

const (
	rowSent rowResult = iota
	rowDeleted
	rowSkipped
	rowFailed
)

// SendPending uploads every pending recording sequentially. Row failures
// are logged and counted; they never stop the batch.
func (p *Pipeline) SendPending(ctx context.Context) (Report, error) {
	if !p.online() {
		return Report{}, common.ErrNoConnection
	}

	if p.cfg.PurgeBeforeSend {
		n, err := p.queue.PurgePending(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("purge pending: %w", err)
		}
		p.logger.Warn(ctx, "pending rows purged before send", "count", n)
	}

	rows, err := p.queue.ListPending(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list pending: %w", err)
	}

	rep := Report{Pending: len(rows)}
	for _, rec := range rows {
		switch p.sendOne(ctx, rec) {
		case rowSent:
			rep.Sent++
		case rowDeleted:
			rep.Deleted++
		case rowSkipped:
			rep.Skipped++
		default:
			rep.Failed++
		}
	}

	if _, err := p.history.Load(ctx, p.user()); err != nil {
		p.logger.Warn(ctx, "history refresh after send failed", "error", err)
	}
	rep.Remaining = p.queue.CountPending(ctx)
	p.onCount(rep.Remaining)

	rep.finish()
	p.logger.Info(ctx, "send pending finished",
		"pending", rep.Pending, "sent", rep.Sent, "deleted", rep.Deleted,
		"skipped", rep.Skipped, "failed", rep.Failed, "outcome", rep.Outcome)
	return rep, nil
}

func (p *Pipeline) sendOne(ctx context.Context, rec models.PendingRecording) rowResult {
	log := p.logger.With("id", rec.ID, "identificacion", rec.Identificacion)

	if !filex.Exists(rec.AudioPath) {
		log.Error(ctx, "audio file missing, dropping recording", "path", rec.AudioPath)
		if err := p.queue.DeleteByID(ctx, rec.ID); err != nil {
			log.Error(ctx, "delete failed", "error", err)
			return rowFailed
		}
		p.onCount(p.queue.CountPending(ctx))
		return rowDeleted
	}

	ref, err := p.queue.FindConfirmedClient(ctx, rec.Identificacion)
	if errors.Is(err, queue.ErrClientNotConfirmed) {
		log.Info(ctx, "client not confirmed yet, leaving pending")
		return rowSkipped
	}
	if err != nil {
		log.Warn(ctx, "client lookup failed", "error", err)
		return rowFailed
	}

	audio, err := filex.ReadBase64(rec.AudioPath)
	if err != nil {
		log.Warn(ctx, "audio read failed", "error", err)
		return rowFailed
	}

	req := p.request(rec, ref)
	req.AudioBase64 = audio
	if p.uploader != nil {
		url, err := p.uploader.Upload(ctx, rec.AudioPath)
		if err != nil {
			log.Warn(ctx, "audio storage upload failed", "error", err)
			return rowFailed
		}
		req.UrlAudio = url
		req.AudioBase64 = ""
	}

	resp, err := p.registrar.RegisterRecording(ctx, req)
	if err != nil {
		log.Warn(ctx, "registration failed", "error", err)
		return rowFailed
	}
	if !resp.Succeeded() {
		log.Warn(ctx, "registration not accepted")
		return rowFailed
	}

	if err := p.queue.MarkSynced(ctx, rec.ID); err != nil {
		// accepted by the server; it will show up as sent in the history
		log.Error(ctx, "mark synced failed", "error", err)
		return rowFailed
	}
	log.Info(ctx, "recording sent", "url", resp.UrlGrabacion)
	return rowSent
}

func (p *Pipeline) request(rec models.PendingRecording, ref *models.ClientRef) api.RegisterRequest {
	pick := func(own, fromClient string) string {
		if own != "" {
			return own
		}
		return fromClient
	}

	user := rec.UsuarioGrabacion
	if user == "" {
		user = p.user()
	}

	return api.RegisterRequest{
		RegisterBase: api.RegisterBase{
			UsuarioCreacion:      user,
			Identificacion:       rec.Identificacion,
			NumeroOperacion:      pick(rec.NumeroOperacion, ref.NumeroOperacion),
			FechaInicioGrabacion: rec.FechaInicioGrabacion,
			FechaFinGrabacion:    rec.FechaFinGrabacion,
			Latitud:              rec.Latitud,
			Longitud:             rec.Longitud,
			Agencia:              pick(rec.Agencia, ref.Agencia),
			LineaCredito:         pick(rec.LineaCredito, ref.LineaCredito),
			IdCliente:            ref.IdCliente,
			EsGrabacionLocal:     rec.EsLocal,
			Duracion:             rec.Duracion,
		},
		CodigoPais: pick(ref.CodigoPais, p.cfg.Pais),
		IdExterno:  ref.IdExterno,
	}
}
