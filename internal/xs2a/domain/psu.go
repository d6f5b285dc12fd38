package domain

import "slices"

// PsuIdData identifies one PSU as presented by the TPP in request headers.
type PsuIdData struct {
	PsuID              string `json:"psuId,omitempty" yaml:"psu_id"`
	PsuIDType          string `json:"psuIdType,omitempty" yaml:"psu_id_type"`
	PsuCorporateID     string `json:"psuCorporateId,omitempty" yaml:"psu_corporate_id"`
	PsuCorporateIDType string `json:"psuCorporateIdType,omitempty" yaml:"psu_corporate_id_type"`
	PsuIPAddress       string `json:"psuIpAddress,omitempty" yaml:"-"`
}

// IsEmpty reports whether no PSU identity was supplied.
func (p PsuIdData) IsEmpty() bool {
	return p.PsuID == "" && p.PsuCorporateID == ""
}

// Equal compares the identifying fields. The IP address is request metadata
// and does not take part.
func (p PsuIdData) Equal(o PsuIdData) bool {
	return p.PsuID == o.PsuID &&
		p.PsuIDType == o.PsuIDType &&
		p.PsuCorporateID == o.PsuCorporateID &&
		p.PsuCorporateIDType == o.PsuCorporateIDType
}

// ContainsPsu reports whether psus holds an identity equal to p.
func ContainsPsu(psus []PsuIdData, p PsuIdData) bool {
	return slices.ContainsFunc(psus, p.Equal)
}

// SamePsus reports whether both lists hold the same identities, ignoring order.
func SamePsus(a, b []PsuIdData) bool {
	if len(a) != len(b) {
		return false
	}
	for _, p := range a {
		if !ContainsPsu(b, p) {
			return false
		}
	}
	return true
}
