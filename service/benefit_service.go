package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"fapdraft-backend/apperrors"
	"fapdraft-backend/models"
)

// BenefitService imports the benefits of a case.
type BenefitService struct {
	cases      CaseStore
	benefits   BenefitStore
	classifier *ClassifierService
	log        *zap.Logger
}

// BenefitServiceOption is a functional option for BenefitService
type BenefitServiceOption func(*BenefitService)

func BenefitWithCaseRepository(r CaseStore) BenefitServiceOption {
	return func(s *BenefitService) { s.cases = r }
}

func BenefitWithRepository(r BenefitStore) BenefitServiceOption {
	return func(s *BenefitService) { s.benefits = r }
}

func BenefitWithClassifier(c *ClassifierService) BenefitServiceOption {
	return func(s *BenefitService) { s.classifier = c }
}

func BenefitWithLogger(l *zap.Logger) BenefitServiceOption {
	return func(s *BenefitService) { s.log = l }
}

// NewBenefitService creates a new benefit service
func NewBenefitService(opts ...BenefitServiceOption) *BenefitService {
	s := &BenefitService{log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportBenefitsRequest represents a bulk import for one case
type ImportBenefitsRequest struct {
	TenantID     int64
	CaseID       int64
	Benefits     []*models.Benefit
	AutoClassify bool
}

// ImportBenefitsResult holds the stored benefits and, when requested, their
// classifications keyed by benefit id.
type ImportBenefitsResult struct {
	Benefits        []*models.Benefit         `json:"benefits"`
	Classifications map[int64]*Classification `json:"classifications,omitempty"`
	Failed          []int64                   `json:"classification_failed,omitempty"`
}

// Import validates every benefit against the case FAP range and stores all
// of them or none. Classification failures never fail the import.
func (s *BenefitService) Import(ctx context.Context, req ImportBenefitsRequest) (*ImportBenefitsResult, error) {
	if s.cases == nil || s.benefits == nil {
		return nil, errors.New("case or benefit repository not set")
	}
	if len(req.Benefits) == 0 {
		return nil, apperrors.Validation("no benefits to import")
	}
	c, err := s.cases.GetByID(ctx, req.TenantID, req.CaseID)
	if err != nil {
		return nil, err
	}

	var errs []error
	for _, b := range req.Benefits {
		if err := b.ValidateVigencia(c); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := s.benefits.CreateBatch(ctx, req.TenantID, req.CaseID, req.Benefits); err != nil {
		return nil, err
	}
	s.log.Info("benefits imported",
		zap.Int64("tenant_id", req.TenantID),
		zap.Int64("case_id", req.CaseID),
		zap.Int("count", len(req.Benefits)),
	)

	result := &ImportBenefitsResult{Benefits: req.Benefits}
	if !req.AutoClassify || s.classifier == nil {
		return result, nil
	}

	result.Classifications = make(map[int64]*Classification, len(req.Benefits))
	for _, b := range req.Benefits {
		cl, err := s.classifier.ClassifyBenefit(ctx, req.TenantID, b.ID)
		if err != nil {
			s.log.Warn("benefit classification failed",
				zap.Int64("case_id", req.CaseID),
				zap.Int64("benefit_id", b.ID),
				zap.Error(err),
			)
			result.Failed = append(result.Failed, b.ID)
			continue
		}
		result.Classifications[b.ID] = cl
		b.ClassifiedReasonID = cl.ReasonID
		confidence := cl.Confidence
		b.ClassificationConfidence = &confidence
		b.NeedsReview = cl.UnableToClassify
	}
	return result, nil
}
