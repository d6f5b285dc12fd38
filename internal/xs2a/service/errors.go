package service

import (
	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/spi"
)

// normaliseSpiError turns a failed SPI call into an ErrorHolder. Business
// errors keep the bank's code and status; anything else is technical.
func normaliseSpiError(a Adapter, err error) *domain.ErrorHolder {
	if e, ok := spi.AsError(err); ok {
		status := e.HTTPStatus
		if status == 0 {
			status = e.Code.HTTPStatus()
		}
		return domain.NewError(domain.ErrorKindBackend, a.ErrorTypeFor(status), e.Code, e.Text)
	}
	return domain.TechnicalError(a.Service())
}

// backendError reports an SPI outcome that is not a call failure, such as
// an ATTEMPT_FAILURE status.
func backendError(a Adapter, code domain.MessageErrorCode, text string) *domain.ErrorHolder {
	return domain.NewError(domain.ErrorKindBackend, a.ErrorTypeFor(code.HTTPStatus()), code, text)
}

func validationError(a Adapter, code domain.MessageErrorCode, text string) *domain.ErrorHolder {
	return domain.ValidationError(a.Service(), code, text)
}
