package store

// Table names are part of the on-device contract.
const (
	TableRecordings = "grabaciones_pendientes"
	TableClients    = "clientes_locales"
	TableCatalog    = "lista_clientes"
)

// baseSchema is executed on every (re)open. Column names and types must
// stay as they are so existing installs keep working.
var baseSchema = []string{
	`CREATE TABLE IF NOT EXISTS grabaciones_pendientes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		Identificacion TEXT,
		audioPath TEXT,
		FechaInicioGrabacion TEXT,
		FechaFinGrabacion TEXT,
		Latitud TEXT,
		Longitud TEXT,
		Agencia TEXT,
		LineaCredito TEXT,
		NumeroOperacion TEXT,
		UsuarioGrabacion TEXT,
		Duracion REAL,
		DuracionTexto TEXT,
		sincronizado INTEGER DEFAULT 0,
		EsLocal INTEGER DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS clientes_locales (
		localId TEXT PRIMARY KEY,
		Identificacion TEXT,
		Nombre TEXT,
		Apellido TEXT,
		NumeroOperacion TEXT,
		FechaCarga TEXT,
		Agencia TEXT,
		LineaCredito TEXT,
		TieneGrabacion INTEGER DEFAULT 0,
		UsuarioAsignado TEXT,
		Origen TEXT,
		CodigoAcreedor TEXT,
		TipoIdentificacion TEXT,
		DatosAdicionales TEXT,
		IdCliente INTEGER DEFAULT 0,
		IdExterno TEXT,
		CodigoPais TEXT,
		sincronizado INTEGER DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS lista_clientes (
		IdCliente INTEGER PRIMARY KEY,
		Identificacion TEXT,
		Nombre TEXT,
		Apellido TEXT,
		NumeroOperacion TEXT,
		FechaCarga TEXT,
		Agencia TEXT,
		LineaCredito TEXT,
		TieneGrabacion INTEGER DEFAULT 0,
		UsuarioAsignado TEXT,
		Origen TEXT,
		CodigoAcreedor TEXT,
		TipoIdentificacion TEXT,
		DatosAdicionales TEXT,
		IdExterno TEXT,
		CodigoPais TEXT,
		EsArchivado INTEGER DEFAULT 0,
		sincronizado INTEGER DEFAULT 1
	)`,
}
