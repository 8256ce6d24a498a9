package shared

import (
	"errors"
	"fmt"
)

// Error kinds shared by every domain package. Services wrap these with
// fmt.Errorf("%w: ...") so handlers can map them to HTTP statuses with
// errors.Is regardless of which module produced them.
var (
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("dados inválidos")
	// ErrNotFound indicates a missing resource.
	ErrNotFound = errors.New("não encontrado")
	// ErrConflict indicates an operation incompatible with current state.
	ErrConflict = errors.New("conflito de estado")
	// ErrExternal indicates a downstream dependency failure.
	ErrExternal = errors.New("falha em serviço externo")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("credenciais inválidas")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Externalf wraps ErrExternal with a formatted message.
func Externalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExternal, fmt.Sprintf(format, args...))
}

// UserSafeMessage returns a message suitable for API consumers. Unknown
// errors collapse into a generic message so internals never leak.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrExternal),
		errors.Is(err, ErrInvalidCredentials):
		return err.Error()
	default:
		return "erro interno, tente novamente"
	}
}
