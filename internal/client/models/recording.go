// Package models defines the records the client persists locally and the
// view-models it builds from server responses.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LocalTimeLayout is the naive local-time format (no zone suffix) used for
// recording timestamps on the device and on the wire.
const LocalTimeLayout = "2006-01-02T15:04:05"

var ErrInvalidRecording = errors.New("invalid recording")

// PendingRecording is one audio capture awaiting (or past) upload. It maps
// onto the grabaciones_pendientes table.
type PendingRecording struct {
	ID                   int64   `json:"id"`
	Identificacion       string  `json:"Identificacion"`
	AudioPath            string  `json:"audioPath"`
	FechaInicioGrabacion string  `json:"FechaInicioGrabacion"`
	FechaFinGrabacion    string  `json:"FechaFinGrabacion"`
	Latitud              string  `json:"Latitud"`
	Longitud             string  `json:"Longitud"`
	Agencia              string  `json:"Agencia"`
	LineaCredito         string  `json:"LineaCredito"`
	NumeroOperacion      string  `json:"NumeroOperacion"`
	UsuarioGrabacion     string  `json:"UsuarioGrabacion"`
	Duracion             float64 `json:"Duracion"`
	DuracionTexto        string  `json:"DuracionTexto"`
	Sincronizado         bool    `json:"sincronizado"`
	EsLocal              bool    `json:"EsLocal"`
}

// Validate enforces the fields a pending row cannot live without.
func (r *PendingRecording) Validate() error {
	if strings.TrimSpace(r.AudioPath) == "" {
		return fmt.Errorf("%w: empty audio path", ErrInvalidRecording)
	}
	if strings.TrimSpace(r.Identificacion) == "" {
		return fmt.Errorf("%w: empty identification", ErrInvalidRecording)
	}
	return nil
}

// Key returns the pair the history merge matches on.
func (r *PendingRecording) Key() OpKey {
	return OpKey{NumeroOperacion: r.NumeroOperacion, Identificacion: r.Identificacion}
}

// FormatLocalTime renders t in LocalTimeLayout using t's own wall clock.
func FormatLocalTime(t time.Time) string {
	return t.Format(LocalTimeLayout)
}

// FormatDuracion renders seconds as mm:ss, or h:mm:ss from one hour up.
func FormatDuracion(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds + 0.5)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// NewRecording builds a pending row from a finished capture. The end time
// and duration are derived from the start and stop instants.
func NewRecording(audioPath, identificacion string, start, stop time.Time) PendingRecording {
	secs := stop.Sub(start).Seconds()
	return PendingRecording{
		Identificacion:       identificacion,
		AudioPath:            audioPath,
		FechaInicioGrabacion: FormatLocalTime(start),
		FechaFinGrabacion:    FormatLocalTime(stop),
		Duracion:             secs,
		DuracionTexto:        FormatDuracion(secs),
		EsLocal:              true,
	}
}
