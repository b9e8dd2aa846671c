package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/client/models"
	"github.com/dmitrijs2005/fieldrec/internal/client/session"
	"github.com/dmitrijs2005/fieldrec/internal/client/upload"
)

var ErrUsage = errors.New("usage")

const usage = `commands:
  login <user> <token>                      store the session
  logout                                    forget the session
  enqueue <audio> <identificacion> [op] [secs]
  add-client <identificacion> <op> [nombre] [apellido]
  pending                                   count pending recordings
  send                                      upload pending recordings
  history                                   today's recordings
  catalog                                   refresh and list confirmed clients
  flush                                     replay backup entries
  stats                                     row counts
  watch                                     follow connectivity until interrupted`

// Run executes one command. Unknown commands and bad arguments return an
// error wrapping ErrUsage.
func (a *App) Run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "", "help":
		fmt.Fprintln(a.out, usage)
		return nil
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.session.Forget(ctx, a.kv)
	case "enqueue":
		return a.enqueue(ctx, args)
	case "add-client":
		return a.addClient(ctx, args)
	case "pending":
		fmt.Fprintf(a.out, "%d pendiente(s)\n", a.queue.CountPending(ctx))
		return nil
	case "send":
		return a.send(ctx)
	case "history":
		return a.showHistory(ctx)
	case "catalog":
		return a.catalog(ctx)
	case "flush":
		return a.flush(ctx)
	case "stats":
		return a.stats(ctx)
	case "watch":
		a.Watch(ctx)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

func (a *App) login(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: login <user> <token>", ErrUsage)
	}
	a.session.Set(args[0], args[1])
	if exp, ok := a.session.ExpiresAt(); ok {
		a.logger.Info(ctx, "session stored", "user", args[0], "expires", exp)
	}
	return a.session.Save(ctx, a.kv)
}

func (a *App) enqueue(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: enqueue <audio> <identificacion> [op] [secs]", ErrUsage)
	}

	var secs float64
	if len(args) > 3 {
		v, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("%w: bad duration %q", ErrUsage, args[3])
		}
		secs = v
	}

	stop := a.now()
	start := stop.Add(-time.Duration(secs * float64(time.Second)))
	rec := models.NewRecording(args[0], args[1], start, stop)
	if len(args) > 2 {
		rec.NumeroOperacion = args[2]
	}
	rec.UsuarioGrabacion = a.session.User()

	id, err := a.queue.EnqueueRecording(ctx, rec)
	if err != nil {
		return err
	}
	if id == 0 {
		fmt.Fprintln(a.out, "grabación guardada en respaldo")
		return nil
	}
	fmt.Fprintf(a.out, "grabación %d en cola\n", id)
	return nil
}

func (a *App) addClient(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: add-client <identificacion> <op> [nombre] [apellido]", ErrUsage)
	}
	c := models.LocalClient{ClientInfo: models.ClientInfo{
		Identificacion:  args[0],
		NumeroOperacion: args[1],
		UsuarioAsignado: a.session.User(),
		Origen:          "LOCAL",
		CodigoPais:      a.config.Pais,
		FechaCarga:      models.FormatLocalTime(a.now()),
	}}
	if len(args) > 2 {
		c.Nombre = args[2]
	}
	if len(args) > 3 {
		c.Apellido = strings.Join(args[3:], " ")
	}

	id, err := a.queue.EnqueueClient(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "cliente %s guardado\n", id)
	return nil
}

func (a *App) send(ctx context.Context) error {
	a.monitor.Check(ctx)
	rep, err := a.sender.SendPending(ctx)
	fmt.Fprintln(a.out, upload.UserMessage(rep, err))
	if err != nil {
		return err
	}
	if rep.Remaining > 0 {
		fmt.Fprintf(a.out, "%d pendiente(s)\n", rep.Remaining)
	}
	return nil
}

func (a *App) requireUser() (string, error) {
	user := a.session.User()
	if user == "" {
		return "", session.ErrNoSession
	}
	return user, nil
}

func (a *App) showHistory(ctx context.Context) error {
	user, err := a.requireUser()
	if err != nil {
		return err
	}
	a.monitor.Check(ctx)

	res, err := a.history.Load(ctx, user)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "[%s] %d grabación(es), %s\n", a.mode(), len(res.Items), res.State)
	for _, g := range res.Items {
		local := ""
		if g.EsLocal {
			local = " (local)"
		}
		fmt.Fprintf(a.out, "  %s  %s  %s  %s%s\n",
			g.FechaFinGrabacion, g.Identificacion, g.NumeroOperacion, g.Duracion, local)
	}
	return nil
}

// catalog pulls the user's confirmed clients when online, then prints the
// cached list either way.
func (a *App) catalog(ctx context.Context) error {
	user, err := a.requireUser()
	if err != nil {
		return err
	}

	if a.monitor.Check(ctx) {
		entries, err := a.api.ClientsForUser(ctx, user)
		if err != nil {
			a.logger.Warn(ctx, "catalog refresh failed", "error", err)
		} else {
			confirmed, err := a.queue.SaveCatalog(ctx, entries)
			if err != nil {
				return err
			}
			a.logger.Info(ctx, "catalog refreshed", "entries", len(entries), "confirmed", confirmed)
		}
	}

	list, err := a.queue.ActiveCatalog(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d cliente(s)\n", len(list))
	for _, c := range list {
		fmt.Fprintf(a.out, "  %d  %s  %s  %s\n", c.IdCliente, c.Identificacion, c.NumeroOperacion, c.NombreCompleto())
	}
	return nil
}

func (a *App) flush(ctx context.Context) error {
	f, err := a.queue.FlushBackups(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "grabaciones %d/%d, clientes %d/%d repuestos\n",
		f.Recordings.Replayed, f.Recordings.Total, f.Clients.Replayed, f.Clients.Total)
	return nil
}

func (a *App) stats(ctx context.Context) error {
	st, err := a.queue.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "pendientes=%d enviadas=%d clientes_locales=%d catalogo=%d\n",
		st.Pending, st.Synced, st.LocalClients, st.CatalogActive)
	return nil
}

// Watch follows connectivity until ctx is done. Going online flushes the
// backups and reloads the history.
func (a *App) Watch(ctx context.Context) {
	a.logger.Info(ctx, "watching connectivity", "interval", a.config.OnlineCheckInterval)
	a.monitor.Run(ctx)
}
