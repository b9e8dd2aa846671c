package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ClientInfo carries the descriptive client fields shared by local records
// and catalog entries.
type ClientInfo struct {
	Identificacion     string `json:"Identificacion"`
	Nombre             string `json:"Nombre"`
	Apellido           string `json:"Apellido"`
	NumeroOperacion    string `json:"NumeroOperacion"`
	FechaCarga         string `json:"FechaCarga"`
	Agencia            string `json:"Agencia"`
	LineaCredito       string `json:"LineaCredito"`
	TieneGrabacion     bool   `json:"TieneGrabacion"`
	UsuarioAsignado    string `json:"UsuarioAsignado"`
	Origen             string `json:"Origen"`
	CodigoAcreedor     string `json:"CodigoAcreedor"`
	TipoIdentificacion string `json:"TipoIdentificacion"`
	// DatosAdicionales is a free-form JSON document kept as text.
	DatosAdicionales string `json:"DatosAdicionales"`
	IdExterno        string `json:"IdExterno"`
	CodigoPais       string `json:"CodigoPais"`
}

// NombreCompleto joins name and surname the way the history screen shows it.
func (c ClientInfo) NombreCompleto() string {
	switch {
	case c.Nombre == "":
		return c.Apellido
	case c.Apellido == "":
		return c.Nombre
	default:
		return c.Nombre + " " + c.Apellido
	}
}

// Key returns the operation/identification pair for c.
func (c ClientInfo) Key() OpKey {
	return OpKey{NumeroOperacion: c.NumeroOperacion, Identificacion: c.Identificacion}
}

// LocalClient is a client added or cached on the device (clientes_locales).
type LocalClient struct {
	LocalID string `json:"localId"`
	ClientInfo
	// IdCliente is 0 until the server confirms the client.
	IdCliente    int64 `json:"IdCliente"`
	Sincronizado bool  `json:"sincronizado"`
}

var newLocalSuffix = func() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewLocalID returns the generated primary key for clients created offline:
// LOCAL_<unix millis>_<random suffix>. The suffix keeps ids created in the
// same millisecond apart.
func NewLocalID(now time.Time) string {
	return fmt.Sprintf("LOCAL_%d_%s", now.UnixMilli(), newLocalSuffix())
}

// CatalogEntry is a server-confirmed client cached for offline display
// (lista_clientes).
type CatalogEntry struct {
	IdCliente int64 `json:"IdCliente"`
	ClientInfo
	EsArchivado  bool `json:"EsArchivado"`
	Sincronizado bool `json:"sincronizado"`
}

// ClientRef is the operation metadata a recording upload needs from a
// confirmed client.
type ClientRef struct {
	IdCliente       int64
	Identificacion  string
	NumeroOperacion string
	Agencia         string
	LineaCredito    string
	IdExterno       string
	CodigoPais      string
}
