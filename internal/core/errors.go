package core

import (
	"errors"
	"fmt"
)

// Domain failures. Every operation returns one of these (wrapped) or a store
// error; a domain failure always means nothing was changed.
var (
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrMissingField            = errors.New("missing required field")
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidType             = errors.New("invalid transaction type")
	ErrInvalidDivision         = errors.New("invalid division")
	ErrInvalidPeriod           = errors.New("invalid period")
	ErrDuplicateName           = errors.New("account name already exists")
	ErrDuplicateBudget         = errors.New("budget already exists for this category and division")
	ErrEditWindowExpired       = errors.New("edit window expired")
	ErrInsufficientBalance     = errors.New("insufficient balance in source account")
	ErrSameAccount             = errors.New("cannot transfer to the same account")
	ErrPrimaryAccountProtected = errors.New("primary account cannot be deleted")
	ErrAccountInUse            = errors.New("account still has transactions")
	ErrTransferLeg             = errors.New("transfer legs cannot be edited individually")
)

const KindInternal = "internal"

var kinds = []struct {
	err  error
	kind string
}{
	{ErrNotFound, "not_found"},
	{ErrForbidden, "forbidden"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrMissingField, "invalid_amount"},
	{ErrInvalidInput, "invalid_input"},
	{ErrInvalidType, "invalid_input"},
	{ErrInvalidDivision, "invalid_input"},
	{ErrInvalidPeriod, "invalid_input"},
	{ErrDuplicateName, "duplicate_name"},
	{ErrDuplicateBudget, "duplicate_budget"},
	{ErrEditWindowExpired, "edit_window_expired"},
	{ErrInsufficientBalance, "insufficient_balance"},
	{ErrSameAccount, "same_account"},
	{ErrPrimaryAccountProtected, "primary_account_protected"},
	{ErrAccountInUse, "account_in_use"},
	{ErrTransferLeg, "transfer_leg"},
}

// Kind maps err to a stable kind name. Errors outside the taxonomy are "internal".
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsDomainError reports whether err is a typed domain failure.
func IsDomainError(err error) bool {
	return err != nil && Kind(err) != KindInternal
}

func fail(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func missing(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingField, field)
}

// NotFoundf wraps ErrNotFound with the entity that was looked up.
func NotFoundf(format string, args ...any) error {
	return fail(ErrNotFound, format, args...)
}
