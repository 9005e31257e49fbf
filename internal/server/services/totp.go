package services

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"regexp"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/avolkov/filevault/internal/common"
	"github.com/avolkov/filevault/internal/server/config"
	"github.com/avolkov/filevault/internal/server/repositories/repomanager"
)

// TOTPService manages the optional second factor: enrolment, code
// verification, and the one-way verified transition that makes a device
// start gating logins.
type TOTPService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	issuer      string
}

func NewTOTPService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *TOTPService {
	return &TOTPService{db: db, repomanager: m, issuer: cfg.TOTPIssuer}
}

var totpCodeFormat = regexp.MustCompile(`^\d{6}$`)

// Setup enrols userID for TOTP and returns the base32 secret plus the
// otpauth:// provisioning URI (rendered as a QR code by the frontend).
// Idempotent: an existing device's secret is returned unchanged.
func (s *TOTPService) Setup(ctx context.Context, userID string) (string, string, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return "", "", err
	}

	deviceRepo := s.repomanager.TOTPDevices(s.db)

	device, err := deviceRepo.Get(ctx, userID)
	if err == nil {
		return device.Secret, s.provisioningURI(device.Secret, user.Email), nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return "", "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: user.Email,
	})
	if err != nil {
		return "", "", err
	}

	secret := key.Secret()
	if err := deviceRepo.Create(ctx, userID, secret); err != nil {
		return "", "", err
	}
	return secret, s.provisioningURI(secret, user.Email), nil
}

// Verify checks a 6-digit code against the user's device without changing
// any state. Malformed input is rejected before the secret is touched.
func (s *TOTPService) Verify(ctx context.Context, userID, code string) (bool, error) {
	if !totpCodeFormat.MatchString(code) {
		return false, common.ErrorMalformed
	}
	device, err := s.repomanager.TOTPDevices(s.db).Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return validateTOTPCode(device.Secret, code), nil
}

// Confirm proves possession of the device: a valid code flips it to
// verified, after which it gates every login. The transition is one-way.
func (s *TOTPService) Confirm(ctx context.Context, userID, code string) error {
	ok, err := s.Verify(ctx, userID, code)
	if err != nil {
		return err
	}
	if !ok {
		return common.ErrorInvalidTOTPCode
	}
	return s.repomanager.TOTPDevices(s.db).SetVerified(ctx, userID)
}

// validateTOTPCode accepts codes within ±1 time step to tolerate clock drift.
func validateTOTPCode(secret, code string) bool {
	ok, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *TOTPService) provisioningURI(secret, email string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", s.issuer)
	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + s.issuer + ":" + email,
		RawQuery: v.Encode(),
	}
	return u.String()
}
