package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/pkg/httpx"
)

const (
	headerPsuID                 = "PSU-ID"
	headerPsuIDType             = "PSU-ID-Type"
	headerPsuCorporateID        = "PSU-Corporate-ID"
	headerPsuCorporateIDType    = "PSU-Corporate-ID-Type"
	headerPsuIPAddress          = "PSU-IP-Address"
	headerDecoupledPreferred    = "TPP-Decoupled-Preferred"
	headerExplicitAuthorisation = "TPP-Explicit-Authorisation-Preferred"
	headerAspspScaApproach      = "ASPSP-SCA-Approach"
	headerLocation              = "Location"
)

const maxBodyBytes = 1 << 20

// psuFromHeaders reads the PSU identification the TPP forwards. The IP
// address falls back to the caller's address.
func psuFromHeaders(r *http.Request) domain.PsuIdData {
	psu := domain.PsuIdData{
		PsuID:              strings.TrimSpace(r.Header.Get(headerPsuID)),
		PsuIDType:          strings.TrimSpace(r.Header.Get(headerPsuIDType)),
		PsuCorporateID:     strings.TrimSpace(r.Header.Get(headerPsuCorporateID)),
		PsuCorporateIDType: strings.TrimSpace(r.Header.Get(headerPsuCorporateIDType)),
		PsuIPAddress:       strings.TrimSpace(r.Header.Get(headerPsuIPAddress)),
	}
	if psu.PsuIPAddress == "" {
		psu.PsuIPAddress = httpx.IPKeyExtractor(r)
	}
	return psu
}

// scaApproachFromHeaders picks the approach the TPP prefers. Redirect is
// not offered, so a redirect preference falls back to embedded.
func scaApproachFromHeaders(r *http.Request) domain.ScaApproach {
	if headerTrue(r, headerDecoupledPreferred) {
		return domain.ScaApproachDecoupled
	}
	return domain.ScaApproachEmbedded
}

func explicitAuthorisationPreferred(r *http.Request) bool {
	return headerTrue(r, headerExplicitAuthorisation)
}

func headerTrue(r *http.Request, name string) bool {
	return strings.EqualFold(strings.TrimSpace(r.Header.Get(name)), "true")
}
