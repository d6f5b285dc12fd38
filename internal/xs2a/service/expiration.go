package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/xs2a/internal/xs2a/domain"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/metrics"
	"github.com/aussiebroadwan/xs2a/internal/xs2a/store"
)

// ExpirationService rejects consents, payments and signing baskets that
// were not confirmed by a PSU in time. RejectUnconfirmed is the operation;
// the background worker only decides when to call it.
type ExpirationService struct {
	Store      store.Store
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Interval   time.Duration
	ConsentTTL time.Duration
	PaymentTTL time.Duration

	now func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewExpirationService creates the sweep worker. If interval is 0 or
// negative, defaults to 1 minute.
func NewExpirationService(st store.Store, logger *slog.Logger, m *metrics.Metrics, interval, consentTTL, paymentTTL time.Duration) *ExpirationService {
	if interval <= 0 {
		interval = time.Minute
	}

	return &ExpirationService{
		Store:      st,
		Logger:     logger,
		Metrics:    m,
		Interval:   interval,
		ConsentTTL: consentTTL,
		PaymentTTL: paymentTTL,
		now:        time.Now,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// ErrAlreadyConfirmed is returned by RejectUnconfirmed when the object left
// its initial status before the rejection ran.
var ErrAlreadyConfirmed = errors.New("object is no longer unconfirmed")

// RejectUnconfirmed moves the object to its rejected status and fails every
// open authorisation on it, in one transaction. The status is re-read inside
// the transaction; an object confirmed in the meantime is left alone.
func (s *ExpirationService) RejectUnconfirmed(ctx context.Context, t domain.AuthorisationType, id string) error {
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		switch t {
		case domain.AuthorisationAIS, domain.AuthorisationPIIS:
			c, err := tx.Consents().GetConsentByID(ctx, id)
			if err != nil {
				return err
			}
			if c.Status != domain.ConsentReceived {
				return ErrAlreadyConfirmed
			}
			if err := tx.Consents().UpdateConsentStatus(ctx, id, domain.ConsentRejected); err != nil {
				return err
			}
		case domain.AuthorisationPISCreation:
			p, err := tx.Payments().GetPaymentByID(ctx, id)
			if err != nil {
				return err
			}
			if !p.TransactionStatus.IsInitial() {
				return ErrAlreadyConfirmed
			}
			if err := tx.Payments().UpdateTransactionStatus(ctx, id, domain.TransactionRejected); err != nil {
				return err
			}
		case domain.AuthorisationSigningBasket:
			b, err := tx.SigningBaskets().GetSigningBasketByID(ctx, id)
			if err != nil {
				return err
			}
			if !b.TransactionStatus.IsInitial() {
				return ErrAlreadyConfirmed
			}
			if err := tx.SigningBaskets().UpdateTransactionStatus(ctx, id, domain.TransactionRejected); err != nil {
				return err
			}
		default:
			return fmt.Errorf("cannot expire %s", t)
		}

		n, err := tx.Authorisations().FailOpenAuthorisations(ctx, id)
		if err != nil {
			return err
		}
		s.Logger.Debug("failed open authorisations", "parent_id", id, "count", n)
		return nil
	})
	if err != nil {
		return fmt.Errorf("reject unconfirmed %s %s: %w", t, id, err)
	}

	s.Metrics.ObserveExpired(string(t))
	return nil
}

// Sweep rejects everything past its confirmation deadline and returns how
// many objects were rejected. A failure on one object does not stop the rest.
func (s *ExpirationService) Sweep(ctx context.Context) (int, error) {
	now := s.now()

	type target struct {
		t  domain.AuthorisationType
		id string
	}
	var targets []target

	if s.ConsentTTL > 0 {
		for _, ct := range []domain.ConsentType{domain.ConsentTypeAIS, domain.ConsentTypePIIS} {
			consents, err := s.Store.Consents().ListUnconfirmedBefore(ctx, ct, now.Add(-s.ConsentTTL))
			if err != nil {
				return 0, fmt.Errorf("list unconfirmed consents: %w", err)
			}
			for _, c := range consents {
				targets = append(targets, target{ct.AuthorisationType(), c.ID})
			}
		}
	}

	if s.PaymentTTL > 0 {
		cutoff := now.Add(-s.PaymentTTL)
		payments, err := s.Store.Payments().ListUnconfirmedBefore(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("list unconfirmed payments: %w", err)
		}
		for _, p := range payments {
			targets = append(targets, target{domain.AuthorisationPISCreation, p.ID})
		}

		baskets, err := s.Store.SigningBaskets().ListUnconfirmedBefore(ctx, cutoff)
		if err != nil {
			return 0, fmt.Errorf("list unconfirmed signing baskets: %w", err)
		}
		for _, b := range baskets {
			targets = append(targets, target{domain.AuthorisationSigningBasket, b.ID})
		}
	}

	var rejected int
	for _, tg := range targets {
		err := s.RejectUnconfirmed(ctx, tg.t, tg.id)
		if errors.Is(err, ErrAlreadyConfirmed) {
			s.Logger.Debug("object confirmed before expiry", "type", string(tg.t), "id", tg.id)
			continue
		}
		if err != nil {
			s.Logger.Error("failed to reject unconfirmed object", "type", string(tg.t), "id", tg.id, "error", err)
			continue
		}
		rejected++
	}
	return rejected, nil
}

// Start begins the background worker. Call Stop() to shut it down.
func (s *ExpirationService) Start() {
	go s.run()
	s.Logger.Info("expiration sweep started", "interval", s.Interval)
}

// Stop blocks until an in-progress sweep has finished.
func (s *ExpirationService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("expiration sweep stopped")
}

func (s *ExpirationService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *ExpirationService) sweep() {
	n, err := s.Sweep(context.Background())
	if err != nil {
		s.Logger.Error("expiration sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("expiration sweep completed", "rejected", n)
	}
}
