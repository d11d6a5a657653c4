package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrUnauthenticated indicates a missing, invalid or expired session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden indicates a valid session lacking the required role or ownership.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidPayment rejects a payment confirmation whose amount is not positive.
	ErrInvalidPayment = errors.New("invalid payment: amount must be greater than zero")
	// ErrNoMembership indicates the member has no dues record.
	ErrNoMembership = errors.New("member has no dues record")
	// ErrSessionStoreUnavailable occurs when the session store cannot be reached.
	ErrSessionStoreUnavailable = errors.New("session store unavailable")
	// ErrAuditWriteFailed occurs when an audit entry cannot be persisted.
	ErrAuditWriteFailed = errors.New("audit write failed")
)

// User-facing messages. They never carry internal detail.
const (
	MsgUnauthenticated = "Non authentifié"
	MsgForbidden       = "Accès refusé"
	MsgNotFound        = "Ressource introuvable"
	MsgNoMembership    = "Aucune cotisation enregistrée pour ce membre"
	MsgInvalidPayment  = "Paiement invalide : le montant doit être supérieur à zéro"
	MsgValidation      = "Données invalides"
	MsgInternal        = "Erreur interne"
)

// UserSafeMessage maps an error onto a message that can be shown to the caller.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrSessionStoreUnavailable):
		return MsgUnauthenticated
	case errors.Is(err, ErrForbidden):
		return MsgForbidden
	case errors.Is(err, ErrNotFound):
		return MsgNotFound
	case errors.Is(err, ErrNoMembership):
		return MsgNoMembership
	case errors.Is(err, ErrInvalidPayment):
		return MsgInvalidPayment
	case errors.Is(err, ErrValidation):
		return MsgValidation
	default:
		return MsgInternal
	}
}
