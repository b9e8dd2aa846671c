package upload

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/fieldrec/internal/common"
)

type Outcome int

const (
	OutcomeNothingPending Outcome = iota
	OutcomeSent
	OutcomeNothingSent
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSent:
		return "sent"
	case OutcomeNothingSent:
		return "nothing_sent"
	default:
		return "nothing_pending"
	}
}

// Report summarizes one SendPending batch.
type Report struct {
	Pending   int
	Sent      int
	Deleted   int
	Skipped   int
	Failed    int
	Remaining int
	Outcome   Outcome
}

func (r Report) Message() string {
	switch r.Outcome {
	case OutcomeSent:
		return fmt.Sprintf("%d audio(s) enviados.", r.Sent)
	case OutcomeNothingSent:
		return "No se pudo enviar ningún audio."
	default:
		return "No hay audios pendientes."
	}
}

// NoConnectionMessage is shown when a batch is refused for lack of network.
const NoConnectionMessage = "Sin conexión"

// UserMessage is the text shown for the result of SendPending.
func UserMessage(r Report, err error) string {
	switch {
	case err == nil:
		return r.Message()
	case errors.Is(err, common.ErrNoConnection):
		return NoConnectionMessage
	default:
		return err.Error()
	}
}

func (r *Report) finish() {
	switch {
	case r.Sent > 0:
		r.Outcome = OutcomeSent
	case r.Pending == 0:
		r.Outcome = OutcomeNothingPending
	default:
		r.Outcome = OutcomeNothingSent
	}
}
