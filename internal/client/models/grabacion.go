package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// OpKey identifies a recording for the history merge. Two recordings with
// the same operation and identification are indistinguishable to it.
type OpKey struct {
	NumeroOperacion string
	Identificacion  string
}

// Grabacion is the history view-model: a server row decorated with local
// flags. It is never authoritative storage.
type Grabacion struct {
	IdGrabacion           int64      `json:"IdGrabacion"`
	NombreArchivo         string     `json:"NombreArchivo"`
	FechaFinGrabacion     string     `json:"FechaFinGrabacion"`
	Duracion              FlexString `json:"Duracion"`
	Identificacion        string     `json:"Identificacion"`
	NumeroOperacion       string     `json:"NumeroOperacion"`
	ClienteNombreCompleto string     `json:"ClienteNombreCompleto"`
	EsError               FlexBool   `json:"EsError,omitempty"`
	// EsLocal means the item originated offline on this device.
	EsLocal bool `json:"EsLocal"`
}

func (g *Grabacion) Key() OpKey {
	return OpKey{NumeroOperacion: g.NumeroOperacion, Identificacion: g.Identificacion}
}

// FromRecording builds a history item from a synced local row.
func FromRecording(r PendingRecording) Grabacion {
	return Grabacion{
		IdGrabacion:       r.ID,
		NombreArchivo:     r.AudioPath,
		FechaFinGrabacion: r.FechaFinGrabacion,
		Duracion:          FlexString(r.DuracionTexto),
		Identificacion:    r.Identificacion,
		NumeroOperacion:   r.NumeroOperacion,
		EsLocal:           r.EsLocal,
	}
}

// FlexString accepts either a JSON string or a JSON number and keeps its
// textual form. The server is not consistent about Duracion.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// Float returns the numeric value when the text is a number.
func (f FlexString) Float() (float64, bool) {
	v, err := strconv.ParseFloat(string(f), 64)
	return v, err == nil
}

// FlexBool accepts true/false, 0/1 and their quoted forms. Anything else
// that is not JSON null is an error.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	switch strings.ToLower(s) {
	case "true", "1", "s", "si":
		*f = true
	case "false", "0", "n", "no", "null", "":
		*f = false
	default:
		return fmt.Errorf("invalid boolean %s", b)
	}
	return nil
}
