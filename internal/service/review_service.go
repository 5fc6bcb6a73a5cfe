package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"onboarding-service/internal/gateway"
	"onboarding-service/internal/models"
	"onboarding-service/internal/repository/scylla"
)

// ReviewResult is the completeness verdict. Non-success is a value, not
// an error: the orchestrator turns it into a blocked status with the
// remarks recorded on the user.
type ReviewResult struct {
	Success bool
	Remarks string
}

// ReviewSource assembles the four review sections for a user.
type ReviewSource interface {
	Assemble(ctx context.Context, appUserID string) (*models.ReviewProjection, error)
}

// profileSource builds the projection from the investor row plus the
// bank's customer profile. Sections load in parallel.
type profileSource struct {
	users     scylla.UserRepository
	investors scylla.InvestorRepository
	bank      gateway.CoreBanking
}

func NewProfileSource(users scylla.UserRepository, investors scylla.InvestorRepository, bank gateway.CoreBanking) ReviewSource {
	return &profileSource{users: users, investors: investors, bank: bank}
}

func (s *profileSource) Assemble(ctx context.Context, appUserID string) (*models.ReviewProjection, error) {
	user, err := s.users.GetByID(ctx, appUserID)
	if err != nil {
		if errors.Is(err, scylla.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var profile *gateway.CustomerProfile
	var investors []*models.InvestorDetails

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.bank.FetchCustomerProfile(gctx, user.BosCode)
		if err != nil {
			return err
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		rows, err := s.investors.GetActiveByUser(gctx, appUserID)
		if err != nil {
			return err
		}
		investors = rows
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pan := profile.PanCardNumber
	dob := profile.DateOfBirth
	if len(investors) == 1 {
		if investors[0].PanCardNumber != "" {
			pan = investors[0].PanCardNumber
		}
		if investors[0].DateOfBirth != nil {
			dob = investors[0].DateOfBirth.Format("2006-01-02")
		}
	}

	return &models.ReviewProjection{
		Address: models.AddressSection{
			DisplayAddress: strings.TrimSpace(profile.AddressLine1 + " " + profile.AddressLine2),
			MFRTA: models.AddressRTA{
				Line1:   profile.AddressLine1,
				City:    profile.City,
				State:   profile.State,
				Pincode: profile.Pincode,
				Country: profile.Country,
			},
		},
		Personal: models.PersonalSection{
			FullName: profile.FullName,
			MFRTA: models.PersonalRTA{
				Name:          profile.FullName,
				DateOfBirth:   dob,
				PanCardNumber: pan,
				Gender:        profile.Gender,
				FatherName:    profile.FatherName,
				MaritalStatus: profile.MaritalStatus,
			},
		},
		Professional: models.ProfessionalSection{
			Occupation: profile.Occupation,
			MFRTA: models.ProfessionalRTA{
				Occupation:    profile.Occupation,
				IncomeSlab:    profile.IncomeSlab,
				SourceOfFunds: profile.SourceOfFunds,
			},
		},
		BankAccount: models.BankAccountSection{
			MaskedAccountNumber: maskAccount(profile.AccountNumber),
			MFRTA: models.BankAccountRTA{
				AccountNumber: profile.AccountNumber,
				IFSCCode:      profile.IFSCCode,
				AccountType:   profile.AccountType,
				BankName:      profile.BankName,
				HolderName:    profile.HolderName,
			},
		},
	}, nil
}

func maskAccount(accountNumber string) string {
	if len(accountNumber) <= 4 {
		return accountNumber
	}
	return strings.Repeat("X", len(accountNumber)-4) + accountNumber[len(accountNumber)-4:]
}

// ReviewService checks every mfRTA-scoped field is populated before the
// user may progress. Fail-fast per section, fail-slow within a section:
// the first section with gaps aborts, carrying all of that section's
// offending keys.
type ReviewService struct {
	source ReviewSource
}

func NewReviewService(source ReviewSource) *ReviewService {
	return &ReviewService{source: source}
}

type sectionFields struct {
	name   string
	fields []models.RTAField
}

func missingKeys(fields []models.RTAField) []string {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.Value) == "" {
			missing = append(missing, f.Key)
		}
	}
	return missing
}

// Validate assembles the projection and checks completeness.
func (s *ReviewService) Validate(ctx context.Context, appUserID string) (*ReviewResult, error) {
	projection, err := s.source.Assemble(ctx, appUserID)
	if err != nil {
		return nil, err
	}

	sections := []sectionFields{
		{"personal", projection.Personal.MFRTA.Fields()},
		{"address", projection.Address.MFRTA.Fields()},
		{"professional", projection.Professional.MFRTA.Fields()},
		{"bankAccount", projection.BankAccount.MFRTA.Fields()},
	}

	for _, section := range sections {
		if missing := missingKeys(section.fields); len(missing) > 0 {
			remark, err := json.Marshal(map[string][]string{section.name: missing})
			if err != nil {
				return nil, fmt.Errorf("failed to encode review remarks: %w", err)
			}
			return &ReviewResult{Success: false, Remarks: string(remark)}, nil
		}
	}
	return &ReviewResult{Success: true}, nil
}

// Projection exposes the assembled review for the pre-activation screen.
func (s *ReviewService) Projection(ctx context.Context, appUserID string) (*models.ReviewProjection, error) {
	return s.source.Assemble(ctx, appUserID)
}
