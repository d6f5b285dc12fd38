package http

import (
	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
)

// resourceLinks builds the _links of a freshly created resource at base.
// With an implicit authorisation the TPP is pointed at the next step of it;
// otherwise at the endpoint that starts one.
func resourceLinks(base, authorisationID string, status domain.ScaStatus) Links {
	links := Links{
		"self":   {Href: base},
		"status": {Href: base + "/status"},
	}
	if authorisationID == "" {
		links["startAuthorisation"] = Link{Href: base + "/authorisations"}
		return links
	}

	auth := base + "/authorisations/" + authorisationID
	links["scaStatus"] = Link{Href: auth}
	for name, href := range nextStepLinks(auth, status) {
		links[name] = href
	}
	return links
}

// nextStepLinks tells the TPP what the authorisation at href expects next.
func nextStepLinks(href string, status domain.ScaStatus) Links {
	switch status {
	case domain.ScaStatusReceived:
		return Links{"updatePsuIdentification": {Href: href}}
	case domain.ScaStatusPsuIdentified:
		return Links{"updatePsuAuthentication": {Href: href}}
	case domain.ScaStatusPsuAuthenticated:
		return Links{"selectAuthenticationMethod": {Href: href}}
	case domain.ScaStatusScaMethodSelected:
		return Links{"authoriseTransaction": {Href: href}}
	}
	return Links{}
}
