package memo

import (
	"errors"
	"fmt"
)

// Kind is the stable, machine-readable name of a memo error.
type Kind string

const (
	// KindTextEmpty indicates the memo text has zero bytes.
	KindTextEmpty Kind = "TextEmpty"

	// KindTextTooLong indicates the memo text exceeds MaxTextLen bytes.
	KindTextTooLong Kind = "TextTooLong"

	// KindAddressExhausted indicates no bump in 0..255 gave a usable address.
	KindAddressExhausted Kind = "AddressExhausted"

	// KindAddressAlreadyInUse indicates a record already exists at the address.
	KindAddressAlreadyInUse Kind = "AddressAlreadyInUse"

	// KindAllocationFailed indicates the author cannot cover the storage deposit.
	KindAllocationFailed Kind = "AllocationFailed"

	// KindUnauthorized indicates the requester is not the record's author.
	KindUnauthorized Kind = "Unauthorized"

	// KindNotFound indicates no memo record exists at the address.
	KindNotFound Kind = "NotFound"
)

// Category groups kinds into the error families callers branch on.
type Category string

const (
	CategoryValidation    Category = "ValidationError"
	CategoryAddressing    Category = "AddressingError"
	CategoryResource      Category = "ResourceError"
	CategoryAuthorization Category = "AuthorizationError"
	CategoryLookup        Category = "LookupError"
)

var kindInfo = map[Kind]struct {
	code     int
	category Category
}{
	KindTextEmpty:           {6000, CategoryValidation},
	KindTextTooLong:         {6001, CategoryValidation},
	KindAddressExhausted:    {6002, CategoryAddressing},
	KindAddressAlreadyInUse: {6003, CategoryAddressing},
	KindAllocationFailed:    {6004, CategoryResource},
	KindUnauthorized:        {6005, CategoryAuthorization},
	KindNotFound:            {6006, CategoryLookup},
}

// Error is returned for every domain failure of Create and Delete.
// Two Errors match under errors.Is when their kinds are equal.
type Error struct {
	Kind    Kind
	Message string

	// Err is the collaborator error that caused this one, if any.
	Err error
}

// Sentinels for errors.Is. Returned values may carry a more specific
// message or a cause; they still match by kind.
var (
	ErrTextEmpty           = &Error{Kind: KindTextEmpty, Message: "memo text cannot be empty"}
	ErrTextTooLong         = &Error{Kind: KindTextTooLong, Message: fmt.Sprintf("memo text exceeds %d bytes", MaxTextLen)}
	ErrAddressExhausted    = &Error{Kind: KindAddressExhausted, Message: "no usable memo address for author and nonce"}
	ErrAddressAlreadyInUse = &Error{Kind: KindAddressAlreadyInUse, Message: "memo address already in use"}
	ErrAllocationFailed    = &Error{Kind: KindAllocationFailed, Message: "author cannot cover the storage deposit"}
	ErrUnauthorized        = &Error{Kind: KindUnauthorized, Message: "only the author can close this memo"}
	ErrNotFound            = &Error{Kind: KindNotFound, Message: "memo not found"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying collaborator error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Code returns the numeric error code, or 0 for an unknown kind.
func (e *Error) Code() int {
	return kindInfo[e.Kind].code
}

// Category returns the error family of the kind.
func (e *Error) Category() Category {
	return kindInfo[e.Kind].category
}

// wrap returns a copy of sentinel carrying cause.
func wrap(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsValidationError reports whether err is TextEmpty or TextTooLong.
func IsValidationError(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Category() == CategoryValidation
}
