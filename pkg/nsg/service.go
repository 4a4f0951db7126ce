package nsg

import (
	"context"

	"github.com/google/uuid"

	"github.com/forgecp/forge/internal/apierr"
)

// Service implements security-group business logic over a Store.
type Service struct {
	store *Store
	prop  *PropagationStore
}

// NewService constructs a Service.
func NewService(store *Store, prop *PropagationStore) *Service {
	return &Service{store: store, prop: prop}
}

// CreateGroup creates a new, empty security group.
func (s *Service) CreateGroup(ctx context.Context, req CreateGroupRequest) (Group, error) {
	g, err := s.store.CreateGroup(ctx, req)
	if err != nil {
		return Group{}, apierr.Wrap(apierr.Internal, "creating security group", err)
	}
	return g, nil
}

// GetGroup returns a group by ID.
func (s *Service) GetGroup(ctx context.Context, id uuid.UUID) (Group, error) {
	g, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return Group{}, apierr.NotFoundf("security group %s not found", id)
	}
	return g, nil
}

// ListGroups returns a page of security groups and the total group count.
func (s *Service) ListGroups(ctx context.Context, limit, offset int) ([]Group, int, error) {
	groups, total, err := s.store.ListGroups(ctx, limit, offset)
	if err != nil {
		return nil, 0, apierr.Wrap(apierr.Internal, "listing security groups", err)
	}
	return groups, total, nil
}

// AddRule validates and adds a rule to a group.
func (s *Service) AddRule(ctx context.Context, groupID uuid.UUID, req CreateRuleRequest) (Rule, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return Rule{}, apierr.NotFoundf("security group %s not found", groupID)
	}

	r, err := s.store.AddRule(ctx, groupID, req)
	if err != nil {
		return Rule{}, apierr.InvalidArgumentf("%s", err)
	}
	return r, nil
}

// ListRules returns every rule in a group in evaluation order.
func (s *Service) ListRules(ctx context.Context, groupID uuid.UUID) ([]Rule, error) {
	rules, err := s.store.ListRules(ctx, groupID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "listing rules", err)
	}
	return rules, nil
}

// DeleteRule removes a rule.
func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteRule(ctx, id); err != nil {
		return apierr.Wrap(apierr.Internal, "deleting rule", err)
	}
	return nil
}

// Attach associates a group with an instance.
func (s *Service) Attach(ctx context.Context, groupID, instanceID uuid.UUID) error {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return apierr.NotFoundf("security group %s not found", groupID)
	}
	if err := s.store.Attach(ctx, groupID, instanceID); err != nil {
		return apierr.Wrap(apierr.Internal, "attaching security group", err)
	}
	return nil
}

// Detach removes an association between a group and an instance.
func (s *Service) Detach(ctx context.Context, groupID, instanceID uuid.UUID) error {
	if err := s.store.Detach(ctx, groupID, instanceID); err != nil {
		return apierr.Wrap(apierr.Internal, "detaching security group", err)
	}
	return nil
}

// ReportPropagation records a DPU agent's application result for one attachment.
func (s *Service) ReportPropagation(ctx context.Context, groupID uuid.UUID, req ReportPropagationRequest) error {
	report := AttachmentReport{InstanceID: req.InstanceID, Applied: req.Applied, Error: req.Error}
	if err := s.prop.RecordReport(ctx, groupID, report); err != nil {
		return apierr.Wrap(apierr.Internal, "recording propagation report", err)
	}
	return nil
}

// PropagationStatus computes the current aggregate status for a group.
func (s *Service) PropagationStatus(ctx context.Context, groupID uuid.UUID) (PropagationStatus, error) {
	attachments, err := s.store.ListAttachments(ctx, groupID)
	if err != nil {
		return PropagationUnknown, apierr.Wrap(apierr.Internal, "listing attachments", err)
	}
	reports, err := s.prop.Reports(ctx, groupID)
	if err != nil {
		return PropagationUnknown, apierr.Wrap(apierr.Internal, "loading propagation reports", err)
	}
	return Aggregate(reports, len(attachments)), nil
}
