package submission

import "time"

// MaxAttempts número de consultas de estado antes de abandonar con PENDING_TIMEOUT.
const MaxAttempts = 5

var backoffSchedule = [...]time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
	time.Hour,
	2 * time.Hour,
}

// BackoffDelay retardo con que se entrega la unidad de consulta número attempt, medido
// desde el paso que la programa: la subida programa la 0 con BackoffDelay(0) y una
// consulta n que sigue en proceso programa la n+1 con BackoffDelay(n+1). Así las
// unidades 0..4 llegan tras 5 min, 15 min, 30 min, 1 h y 2 h.
// Más allá de la tabla se repite la última entrada.
func BackoffDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= len(backoffSchedule) {
		return backoffSchedule[len(backoffSchedule)-1]
	}
	return backoffSchedule[attempt]
}
