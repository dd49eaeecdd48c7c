// Package otp implements the one-time code challenge that gates the
// self-service management surface.  A customer who wants to manage a
// booking requests a code that is sent to the email on the booking;
// presenting the correct code within its lifetime yields a signed
// manage token.  Codes are single use and attempt limited so they
// cannot be brute forced across their short window.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	codeDigits  = 6
	DefaultTTL  = 10 * time.Minute
	maxAttempts = 5
)

var (
	// ErrInvalidCode covers expired, missing, exhausted, and simply
	// wrong codes alike.  Callers must not distinguish these cases in
	// responses; a probing client learns nothing beyond "try again".
	ErrInvalidCode = errors.New("otp: invalid or expired code")
)

// Sender delivers a freshly issued code to the customer.
type Sender interface {
	SendOTP(ctx context.Context, email, code string, ttl time.Duration) error
}

// Service issues and verifies one-time codes.
type Service struct {
	store  Store
	sender Sender
	ttl    time.Duration
}

func NewService(store Store, sender Sender, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{store: store, sender: sender, ttl: ttl}
}

// Issue generates a fresh code for the booking, stores its bcrypt hash,
// and hands the plaintext to the sender.  Re-issuing replaces any
// pending challenge, which also resets the attempt counter; the
// rate limiter on the request endpoint keeps that from being a
// brute-force reset lever.
func (s *Service) Issue(ctx context.Context, bookingID, email string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("otp: generate: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("otp: hash: %w", err)
	}
	entry := Entry{Hash: hash, ExpiresAt: time.Now().Add(s.ttl)}
	if err := s.store.Put(ctx, bookingID, entry); err != nil {
		return fmt.Errorf("otp: store: %w", err)
	}
	if err := s.sender.SendOTP(ctx, email, code, s.ttl); err != nil {
		// Without delivery the challenge is unanswerable; drop it so
		// the customer's retry starts clean.
		if derr := s.store.Delete(ctx, bookingID); derr != nil {
			log.Printf("otp: cleanup after send failure: %v", derr)
		}
		return fmt.Errorf("otp: send: %w", err)
	}
	return nil
}

// Verify checks a submitted code against the pending challenge.  The
// challenge is consumed on success and after the attempt budget is
// spent; every failure path returns the same ErrInvalidCode.
func (s *Service) Verify(ctx context.Context, bookingID, code string) error {
	entry, err := s.store.Get(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ErrNoEntry) {
			return ErrInvalidCode
		}
		return err
	}
	if entry.Attempts >= maxAttempts {
		if err := s.store.Delete(ctx, bookingID); err != nil {
			log.Printf("otp: delete exhausted challenge: %v", err)
		}
		return ErrInvalidCode
	}
	if bcrypt.CompareHashAndPassword(entry.Hash, []byte(code)) != nil {
		entry.Attempts++
		if entry.Attempts >= maxAttempts {
			if err := s.store.Delete(ctx, bookingID); err != nil {
				log.Printf("otp: delete exhausted challenge: %v", err)
			}
		} else if err := s.store.Put(ctx, bookingID, entry); err != nil {
			log.Printf("otp: record failed attempt: %v", err)
		}
		return ErrInvalidCode
	}
	if err := s.store.Delete(ctx, bookingID); err != nil {
		log.Printf("otp: consume challenge: %v", err)
	}
	return nil
}

// generateCode returns a zero-padded decimal code of codeDigits digits
// drawn from crypto/rand.
func generateCode() (string, error) {
	limit := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		limit.Mul(limit, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
