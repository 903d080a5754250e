package linkdrop

import (
	"errors"
	"fmt"

	"linkdrop-controlplane/pkg/errutil"
	"linkdrop-controlplane/pkg/identity"
	"linkdrop-controlplane/services/ledger"
	"linkdrop-controlplane/services/provisioning"
)

var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNoSuchCredential       = errors.New("no such credential")
	ErrInvalidAccountIdentity = errors.New("invalid account identity")
	ErrInvalidOptions         = provisioning.ErrInvalidOptions
	ErrHostProtocolViolation  = errors.New("host protocol violation")
	ErrDepositTooSmall        = errors.New("deposit too small")
	ErrInvalidPublicKey       = identity.ErrInvalidPublicKey
)

func unauthorized(reason string) error {
	return errutil.Forbidden(reason, ErrUnauthorized)
}

func invalidAccount(id string, err error) error {
	return errutil.BadRequest(fmt.Sprintf("invalid account id %q", id), fmt.Errorf("%w: %w", ErrInvalidAccountIdentity, err))
}

func invalidPublicKey(err error) error {
	return errutil.BadRequest("invalid public key", err)
}

func invalidOptions(err error) error {
	return errutil.BadRequest("invalid options", err)
}

func protocolViolation(format string, args ...any) error {
	return errutil.Internal("host protocol violation", fmt.Errorf("%w: %s", ErrHostProtocolViolation, fmt.Sprintf(format, args...)))
}

// ledgerError maps store errors onto the service taxonomy.
func ledgerError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return errutil.NotFound("no such credential", fmt.Errorf("%w: %w", ErrNoSuchCredential, err))
	case errors.Is(err, ledger.ErrNegativeAmount):
		return errutil.BadRequest("amount must not be negative", err)
	default:
		return errutil.Internal("ledger unavailable", err)
	}
}

func hostError(err error) error {
	return errutil.ServiceUnavailable("host unavailable", err)
}
