package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"
	ErrTokenExpired  ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidID       ErrCode = "INVALID_ID"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrUnknownExamType ErrCode = "UNKNOWN_EXAM_TYPE"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Session lifecycle ─────────────────────────────────────────────
	ErrInvalidState ErrCode = "INVALID_STATE"
	ErrNotCompleted ErrCode = "NOT_COMPLETED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrStorage            ErrCode = "STORAGE_ERROR"
	ErrServiceUnavailable ErrCode = "SERVICE_UNAVAILABLE"
	ErrInternal           ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token di autenticazione richiesto."
	case ErrTokenInvalid:
		return "Token di autenticazione non valido."
	case ErrTokenExpired:
		return "Token di autenticazione scaduto."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Non hai i permessi per accedere a questa risorsa."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validazione non riuscita. Controlla i dati inviati."
	case ErrInvalidID:
		return "Formato dell'ID non valido."
	case ErrInvalidPayload:
		return "Corpo della richiesta non valido."
	case ErrUnknownExamType:
		return "Tipo di TOLC sconosciuto."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Risorsa non trovata."

	// ─── Session lifecycle ─────────────────────────────────────────────
	case ErrInvalidState:
		return "Operazione non consentita nello stato attuale della sezione."
	case ErrNotCompleted:
		return "La simulazione non è ancora terminata."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Troppe richieste. Riprova tra poco."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrStorage:
		return "Archivio dati non raggiungibile. Riprova."
	case ErrServiceUnavailable:
		return "Servizio temporaneamente non disponibile. Riprova."
	case ErrInternal:
		return "Si è verificato un errore interno del server."
	default:
		return "Si è verificato un errore imprevisto."
	}
}
