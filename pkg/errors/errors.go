package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation           Code = "VALIDATION_ERROR"
	CodeDuplicate            Code = "DUPLICATE_TRANSACTION"
	CodeConcurrentInProgress Code = "CONCURRENT_REQUEST_IN_PROGRESS"
	CodeWalletLocked         Code = "WALLET_LOCKED"
	CodeInsufficientBalance  Code = "INSUFFICIENT_BALANCE"
	CodeWalletNotFound       Code = "WALLET_NOT_FOUND"
	CodeWalletInactive       Code = "WALLET_INACTIVE"
	CodeNotFound             Code = "NOT_FOUND"
	CodeOperationFailed      Code = "OPERATION_FAILED"
	CodeDependency           Code = "DEPENDENCY_ERROR"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		Retryable:      false,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeDuplicate: {
		HTTPStatus:     http.StatusConflict,
		Retryable:      false,
		PublicMessage:  "duplicate transaction",
		DetailsAllowed: true,
	},
	CodeConcurrentInProgress: {
		HTTPStatus:     http.StatusTooManyRequests,
		Retryable:      true,
		PublicMessage:  "another request with the same idempotency key is being processed",
		DetailsAllowed: false,
	},
	CodeWalletLocked: {
		HTTPStatus:     http.StatusLocked,
		Retryable:      true,
		PublicMessage:  "wallet is currently processing another transaction",
		DetailsAllowed: false,
	},
	CodeInsufficientBalance: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "insufficient balance",
		DetailsAllowed: true,
	},
	CodeWalletNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "wallet not found",
		DetailsAllowed: false,
	},
	CodeWalletInactive: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Retryable:      false,
		PublicMessage:  "wallet is not active",
		DetailsAllowed: false,
	},
	CodeNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Retryable:      false,
		PublicMessage:  "resource not found",
		DetailsAllowed: false,
	},
	CodeOperationFailed: {
		HTTPStatus:     http.StatusInternalServerError,
		Retryable:      true,
		PublicMessage:  "operation failed",
		DetailsAllowed: false,
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeOperationFailed]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeOperationFailed
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
