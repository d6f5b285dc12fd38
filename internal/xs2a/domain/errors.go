package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// MessageErrorCode is the code carried in a tppMessage.
type MessageErrorCode string

const (
	CodeFormatError            MessageErrorCode = "FORMAT_ERROR"
	CodeFormatErrorNoPsu       MessageErrorCode = "FORMAT_ERROR_NO_PSU"
	CodeParameterNotSupported  MessageErrorCode = "PARAMETER_NOT_SUPPORTED"
	CodePsuCredentialsInvalid  MessageErrorCode = "PSU_CREDENTIALS_INVALID"
	CodeScaMethodUnknown       MessageErrorCode = "SCA_METHOD_UNKNOWN"
	CodeScaInvalid             MessageErrorCode = "SCA_INVALID"
	CodeConsentUnknown         MessageErrorCode = "CONSENT_UNKNOWN"
	CodeResourceUnknown        MessageErrorCode = "RESOURCE_UNKNOWN"
	CodeResourceExpired        MessageErrorCode = "RESOURCE_EXPIRED"
	CodeStatusInvalid          MessageErrorCode = "STATUS_INVALID"
	CodeServiceInvalid         MessageErrorCode = "SERVICE_INVALID"
	CodeServiceBlocked         MessageErrorCode = "SERVICE_BLOCKED"
	CodeProductUnknown         MessageErrorCode = "PRODUCT_UNKNOWN"
	CodeProductInvalid         MessageErrorCode = "PRODUCT_INVALID"
	CodeReferenceMixInvalid    MessageErrorCode = "REFERENCE_MIX_INVALID"
	CodeReferenceStatusInvalid MessageErrorCode = "REFERENCE_STATUS_INVALID"
	CodeSessionsNotSupported   MessageErrorCode = "SESSIONS_NOT_SUPPORTED"
	CodeTokenInvalid           MessageErrorCode = "TOKEN_INVALID"
	CodeRoleInvalid            MessageErrorCode = "ROLE_INVALID"
	CodeAccessExceeded         MessageErrorCode = "ACCESS_EXCEEDED"
	CodeInternalServerError    MessageErrorCode = "INTERNAL_SERVER_ERROR"
)

var codeStatus = map[MessageErrorCode]int{
	CodePsuCredentialsInvalid:  http.StatusUnauthorized,
	CodeTokenInvalid:           http.StatusUnauthorized,
	CodeRoleInvalid:            http.StatusUnauthorized,
	CodeServiceBlocked:         http.StatusForbidden,
	CodeProductInvalid:         http.StatusForbidden,
	CodeResourceExpired:        http.StatusForbidden,
	CodeConsentUnknown:         http.StatusForbidden,
	CodeResourceUnknown:        http.StatusNotFound,
	CodeProductUnknown:         http.StatusNotFound,
	CodeServiceInvalid:         http.StatusMethodNotAllowed,
	CodeStatusInvalid:          http.StatusConflict,
	CodeReferenceStatusInvalid: http.StatusConflict,
	CodeAccessExceeded:         http.StatusTooManyRequests,
	CodeInternalServerError:    http.StatusInternalServerError,
}

// HTTPStatus is the response status a code maps to when no other status is
// known. Unlisted codes are client errors.
func (c MessageErrorCode) HTTPStatus() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusBadRequest
}

// ErrorKind says where an error originated.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindBackend    ErrorKind = "backend"
	ErrorKindTechnical  ErrorKind = "technical"
)

// ErrorType is the protocol class of an error, e.g. PIS_401.
type ErrorType struct {
	Service    ServiceType
	HTTPStatus int
}

func (t ErrorType) String() string {
	return fmt.Sprintf("%s_%d", t.Service, t.HTTPStatus)
}

type MessageCategory string

const (
	CategoryError   MessageCategory = "ERROR"
	CategoryWarning MessageCategory = "WARNING"
)

// TppMessage is one entry of an error response.
type TppMessage struct {
	Category MessageCategory  `json:"category"`
	Code     MessageErrorCode `json:"code"`
	Path     string           `json:"path,omitempty"`
	Text     string           `json:"text,omitempty"`
}

// ErrorHolder is the error result of every public operation.
type ErrorHolder struct {
	Kind      ErrorKind
	ErrorType ErrorType
	Messages  []TppMessage
}

// NewError builds an ErrorHolder with one ERROR message.
func NewError(kind ErrorKind, errType ErrorType, code MessageErrorCode, text string) *ErrorHolder {
	return &ErrorHolder{
		Kind:      kind,
		ErrorType: errType,
		Messages:  []TppMessage{{Category: CategoryError, Code: code, Text: text}},
	}
}

// ValidationError is a local validation failure. It never mutates state.
func ValidationError(service ServiceType, code MessageErrorCode, text string) *ErrorHolder {
	return NewError(ErrorKindValidation, ErrorType{Service: service, HTTPStatus: code.HTTPStatus()}, code, text)
}

// TechnicalError reports an infrastructure failure such as an identifier that
// could not be decrypted or an unavailable store.
func TechnicalError(service ServiceType) *ErrorHolder {
	return NewError(ErrorKindTechnical,
		ErrorType{Service: service, HTTPStatus: http.StatusInternalServerError},
		CodeInternalServerError, "")
}

func (e *ErrorHolder) Error() string {
	codes := make([]string, 0, len(e.Messages))
	for _, m := range e.Messages {
		if m.Text != "" {
			codes = append(codes, string(m.Code)+": "+m.Text)
			continue
		}
		codes = append(codes, string(m.Code))
	}
	return e.ErrorType.String() + " " + strings.Join(codes, "; ")
}

// Code returns the code of the first message.
func (e *ErrorHolder) Code() MessageErrorCode {
	if e == nil || len(e.Messages) == 0 {
		return ""
	}
	return e.Messages[0].Code
}

// HasCode reports whether any message carries code.
func (e *ErrorHolder) HasCode(code MessageErrorCode) bool {
	if e == nil {
		return false
	}
	for _, m := range e.Messages {
		if m.Code == code {
			return true
		}
	}
	return false
}

// AsErrorHolder returns the ErrorHolder inside err. Any other error is
// reported as a technical error of the given service.
func AsErrorHolder(err error, service ServiceType) *ErrorHolder {
	if err == nil {
		return nil
	}
	var h *ErrorHolder
	if errors.As(err, &h) {
		return h
	}
	return TechnicalError(service)
}
