package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// ErrTransport: la llamada al WS AEAT falló a nivel de transporte
	// (conexión, status HTTP no exitoso o cuerpo vacío). El lote completo se
	// aborta sin efecto alguno en persistencia.
	ErrTransport = errors.New("fallo de transporte con el WS AEAT")

	// ErrProtocol: la respuesta parsea como XML pero no trae la estructura
	// esperada (sin Body o sin líneas de respuesta). Mismo efecto: lote
	// abortado, cero persistencia.
	ErrProtocol = errors.New("respuesta AEAT sin la estructura esperada")

	// ErrThrottled: la ventana de espera del emisor aún no venció.
	ErrThrottled = errors.New("emisor dentro de la ventana de espera")

	// ErrNotVoidable: el registro no es anulable (no aceptado, ya anulado o
	// referenciado por otro registro).
	ErrNotVoidable = errors.New("registro no anulable")
)
