package checkout

import "fmt"

// ValidationError: entrada inválida, nada foi persistido nem enviado ao provedor
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func invalid(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// UpstreamError: banco ou Mercado Pago falharam. BetID vem preenchido quando a
// aposta já tinha sido gravada (fica pending, sem preferência).
type UpstreamError struct {
	Op    string
	BetID string
	Err   error
}

func (e *UpstreamError) Error() string {
	if e.BetID != "" {
		return fmt.Sprintf("%s (bet %s): %v", e.Op, e.BetID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
