package apperrors

import (
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrInvalidSignature    ErrorType = "INVALID_SIGNATURE"
	ErrBannedAccount       ErrorType = "BANNED_ACCOUNT"
	ErrUnsupportedAsset    ErrorType = "UNSUPPORTED_ASSET"
	ErrPaused              ErrorType = "PAUSED"
	ErrOracleUnavailable   ErrorType = "ORACLE_UNAVAILABLE"
	ErrInsufficientFunds   ErrorType = "INSUFFICIENT_FUNDS"
	ErrAuthorizationFailed ErrorType = "AUTHORIZATION_FAILED"
	ErrTransferFailed      ErrorType = "TRANSFER_FAILED"
	ErrDispatchFailed      ErrorType = "DISPATCH_FAILED"
	ErrOrderExpired        ErrorType = "ORDER_EXPIRED"
	ErrNonceUsed           ErrorType = "NONCE_USED"
	ErrReentrancy          ErrorType = "REENTRANCY"
	ErrInvalidRequest      ErrorType = "INVALID_REQUEST"
	ErrInternal            ErrorType = "INTERNAL_ERROR"
	ErrNotFound            ErrorType = "NOT_FOUND"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func Newf(errType ErrorType, format string, args ...interface{}) *AppError {
	return New(errType, fmt.Sprintf(format, args...), nil)
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// TypeOf returns the error type of err, or ErrInternal for untyped errors.
func TypeOf(err error) ErrorType {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Type
	}
	return ErrInternal
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidSignature, ErrAuthorizationFailed:
		return http.StatusUnauthorized
	case ErrBannedAccount:
		return http.StatusForbidden
	case ErrUnsupportedAsset, ErrInvalidRequest, ErrOrderExpired, ErrInsufficientFunds:
		return http.StatusBadRequest
	case ErrNonceUsed:
		return http.StatusConflict
	case ErrPaused:
		return http.StatusServiceUnavailable
	case ErrOracleUnavailable:
		return http.StatusBadGateway
	case ErrTransferFailed, ErrDispatchFailed, ErrReentrancy:
		return http.StatusUnprocessableEntity
	case ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrInvalidSignature:
		return "Check that the order was signed by the sale taker over the exact typed-data digest."
	case ErrOrderExpired:
		return "Request a freshly signed order with a later deadline."
	case ErrNonceUsed:
		return "Request a freshly signed order with a new nonce."
	case ErrInsufficientFunds:
		return "Supply at least amount + fee in native value."
	case ErrAuthorizationFailed:
		return "Provide a valid permit credential covering the full payout."
	case ErrPaused:
		return "Wait until the operator unpauses settlement."
	case ErrOracleUnavailable:
		return "Retry once the price feed recovers."
	default:
		return ""
	}
}
