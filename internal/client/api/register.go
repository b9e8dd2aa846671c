package api

// RegisterBase is the registration payload shared by both endpoints.
type RegisterBase struct {
	AudioBase64          string  `json:"AudioBase64,omitempty"`
	UrlAudio             string  `json:"UrlAudio,omitempty"`
	UsuarioCreacion      string  `json:"UsuarioCreacion"`
	Identificacion       string  `json:"Identificacion"`
	NumeroOperacion      string  `json:"NumeroOperacion"`
	FechaInicioGrabacion string  `json:"FechaInicioGrabacion"`
	FechaFinGrabacion    string  `json:"FechaFinGrabacion"`
	Latitud              string  `json:"Latitud"`
	Longitud             string  `json:"Longitud"`
	Agencia              string  `json:"Agencia"`
	LineaCredito         string  `json:"LineaCredito"`
	IdCliente            int64   `json:"IdCliente"`
	EsGrabacionLocal     bool    `json:"EsGrabacionLocal"`
	Duracion             float64 `json:"Duracion"`
}

// RegisterRequest is the country variant; the default endpoint receives
// only the embedded RegisterBase.
type RegisterRequest struct {
	RegisterBase
	CodigoPais string `json:"CodigoPais"`
	IdExterno  string `json:"IdExterno"`
}

type RegisterResponse struct {
	Exito             *bool  `json:"Exito,omitempty"`
	IdGrabacion       int64  `json:"IdGrabacion,omitempty"`
	UrlGrabacion      string `json:"UrlGrabacion,omitempty"`
	FechaFinGrabacion string `json:"FechaFinGrabacion,omitempty"`
}

// Succeeded is true when the server set Exito, returned a URL or echoed
// the end timestamp. Any one of them is enough.
func (r *RegisterResponse) Succeeded() bool {
	if r == nil {
		return false
	}
	return (r.Exito != nil && *r.Exito) || r.UrlGrabacion != "" || r.FechaFinGrabacion != ""
}
