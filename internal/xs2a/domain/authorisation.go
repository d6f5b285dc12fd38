package domain

import "time"

// AuthenticationObject is one SCA method offered by the ASPSP.
type AuthenticationObject struct {
	AuthenticationType     string `json:"authenticationType"`
	AuthenticationVersion  string `json:"authenticationVersion,omitempty"`
	AuthenticationMethodID string `json:"authenticationMethodId"`
	Name                   string `json:"name,omitempty"`
	Explanation            string `json:"explanation,omitempty"`
	Decoupled              bool   `json:"decoupled,omitempty"`
}

// ChallengeData is shown to the PSU for an embedded SCA method.
type ChallengeData struct {
	Image                 []byte   `json:"image,omitempty"`
	Data                  []string `json:"data,omitempty"`
	ImageLink             string   `json:"imageLink,omitempty"`
	OtpMaxLength          int      `json:"otpMaxLength,omitempty"`
	OtpFormat             string   `json:"otpFormat,omitempty"`
	AdditionalInformation string   `json:"additionalInformation,omitempty"`
}

// Authorisation is one PSU's SCA session for a business object. ParentID is
// the internal id of that object. Records are never deleted.
type Authorisation struct {
	ID               string
	ParentID         string
	Type             AuthorisationType
	Psu              PsuIdData
	ScaStatus        ScaStatus
	ScaApproach      ScaApproach
	ChosenMethodID   string
	AvailableMethods []AuthenticationObject
	ChallengeData    *ChallengeData
	RedirectURI      string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FindMethod returns the available method with the given id.
func (a Authorisation) FindMethod(id string) (AuthenticationObject, bool) {
	for _, m := range a.AvailableMethods {
		if m.AuthenticationMethodID == id {
			return m, true
		}
	}
	return AuthenticationObject{}, false
}

// AwaitsDecoupledConfirmation reports whether a push was sent to the PSU's
// device and the bank's answer is still outstanding.
func (a Authorisation) AwaitsDecoupledConfirmation() bool {
	if a.ScaApproach != ScaApproachDecoupled || a.ChosenMethodID == "" {
		return false
	}
	return a.ScaStatus == ScaStatusPsuAuthenticated || a.ScaStatus == ScaStatusScaMethodSelected
}

// UpdatePsuDataRequest is one "update PSU data" call on an authorisation.
// Exactly one stage-specific field set is expected: identification, password,
// method selection or the SCA authentication data.
type UpdatePsuDataRequest struct {
	BusinessObjectID        string
	AuthorisationID         string
	TppID                   string
	Psu                     PsuIdData
	Password                string
	AuthenticationMethodID  string
	ScaAuthenticationData   string
	UpdatePsuIdentification bool
}

// UpdatePsuDataResponse is the result of one dispatcher step. When Error is
// set the remaining fields describe the state after any side effects.
type UpdatePsuDataResponse struct {
	ScaStatus        ScaStatus
	BusinessObjectID string
	AuthorisationID  string
	Psu              PsuIdData
	ScaApproach      ScaApproach
	AvailableMethods []AuthenticationObject
	ChosenMethod     *AuthenticationObject
	ChallengeData    *ChallengeData
	PsuMessage       string
	Error            *ErrorHolder
}

func (r UpdatePsuDataResponse) HasError() bool {
	return r.Error != nil
}

// StartAuthorisationResponse is returned when an authorisation is created.
type StartAuthorisationResponse struct {
	AuthorisationID string
	ScaStatus       ScaStatus
	ScaApproach     ScaApproach
	Psu             PsuIdData
}
