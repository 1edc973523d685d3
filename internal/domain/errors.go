package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound      = errors.New("recurso no encontrado")
	ErrInvalidInput  = errors.New("entrada inválida")
	ErrUnauthorized  = errors.New("no autorizado")
	ErrForbidden     = errors.New("acceso denegado")
	ErrConflict      = errors.New("conflicto con el estado actual")

	// ErrRateLimited el proveedor pidió reducir el ritmo (HTTP 429). Es el único error del
	// pipeline que sube hasta el lote para cortarlo.
	ErrRateLimited = errors.New("proveedor limitó la tasa de peticiones")
	// ErrConcurrentUpdate la comparación de versión/estado falló: otra ejecución ganó.
	ErrConcurrentUpdate = errors.New("el registro fue modificado por otra ejecución")
	// ErrProviderNotRegistered no hay handler registrado para el proveedor.
	ErrProviderNotRegistered = errors.New("proveedor de e-factura no registrado")
	// ErrActiveSubmission ya existe un envío activo para la factura.
	ErrActiveSubmission = errors.New("la factura ya tiene un envío activo")
	// ErrUnsupportedDocument el tipo de documento no se puede enviar al proveedor.
	ErrUnsupportedDocument = errors.New("tipo de documento no admitido por el proveedor")
)
