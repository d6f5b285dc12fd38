package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
)

// SupersededPolicy decides which older consents a newly valid consent
// replaces, and terminates them.
type SupersededPolicy interface {
	TerminateSuperseded(ctx context.Context, st store.Store, consentID string) (int, error)
}

// SameTppAndPsuPolicy keeps one recurring AIS consent per TPP and PSU set:
// when a recurring AIS consent becomes valid every other valid recurring AIS
// consent of the same TPP with the same PSUs is terminated by the TPP.
type SameTppAndPsuPolicy struct{}

func (SameTppAndPsuPolicy) TerminateSuperseded(ctx context.Context, st store.Store, consentID string) (int, error) {
	c, err := st.Consents().GetConsentByID(ctx, consentID)
	if err != nil {
		return 0, fmt.Errorf("load consent: %w", err)
	}
	if c.Type != domain.ConsentTypeAIS || !c.Recurring || c.Status != domain.ConsentValid {
		return 0, nil
	}

	others, err := st.Consents().ListConsentsByTpp(ctx, c.TppID, domain.ConsentTypeAIS, domain.ConsentValid)
	if err != nil {
		return 0, fmt.Errorf("list tpp consents: %w", err)
	}

	var n int
	for _, o := range others {
		if o.ID == c.ID || !o.Recurring || !domain.SamePsus(o.Psus, c.Psus) {
			continue
		}
		if err := st.Consents().UpdateConsentStatus(ctx, o.ID, domain.ConsentTerminatedByTpp); err != nil {
			return n, fmt.Errorf("terminate consent %s: %w", o.ID, err)
		}
		n++
	}
	return n, nil
}
