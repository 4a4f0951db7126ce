package nsg

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/forgecp/forge/internal/db"
)

// Store provides database operations for security groups, rules, and attachments.
type Store struct {
	dbtx db.DBTX
}

// NewStore creates a Store backed by the given database handle.
func NewStore(dbtx db.DBTX) *Store {
	return &Store{dbtx: dbtx}
}

const groupColumns = `id, tenant_id, name, description, created_at, updated_at`

func scanGroupRow(row pgx.Row) (Group, error) {
	var g Group
	err := row.Scan(&g.ID, &g.TenantID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

// CreateGroup inserts a new, empty security group.
func (s *Store) CreateGroup(ctx context.Context, req CreateGroupRequest) (Group, error) {
	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO nsg_groups (id, tenant_id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, now(), now())
		 RETURNING `+groupColumns,
		uuid.New(), req.TenantID, req.Name, req.Description,
	)
	return scanGroupRow(row)
}

// GetGroup returns a single group by ID.
func (s *Store) GetGroup(ctx context.Context, id uuid.UUID) (Group, error) {
	row := s.dbtx.QueryRow(ctx, `SELECT `+groupColumns+` FROM nsg_groups WHERE id = $1`, id)
	return scanGroupRow(row)
}

// ListGroups returns a page of security groups ordered by name, along with
// the total group count.
func (s *Store) ListGroups(ctx context.Context, limit, offset int) ([]Group, int, error) {
	var total int
	if err := s.dbtx.QueryRow(ctx, `SELECT count(*) FROM nsg_groups`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting groups: %w", err)
	}

	rows, err := s.dbtx.Query(ctx,
		`SELECT `+groupColumns+` FROM nsg_groups ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		g, err := scanGroupRow(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning group row: %w", err)
		}
		out = append(out, g)
	}
	return out, total, rows.Err()
}

// ListAllGroups returns every security group, unpaginated, for internal
// sweeps that must consider the whole fleet (the propagation runner).
func (s *Store) ListAllGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.dbtx.Query(ctx, `SELECT `+groupColumns+` FROM nsg_groups ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}
	defer rows.Close()

	var out []Group
	for rows.Next() {
		g, err := scanGroupRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning group row: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

const ruleColumns = `id, group_id, priority, direction, protocol, action,
	prefix_cidr, ipv6, src_port_start, src_port_end, dst_port_start, dst_port_end`

func scanRuleRow(row pgx.Row) (Rule, error) {
	var r Rule
	var srcStart, srcEnd, dstStart, dstEnd *int
	err := row.Scan(&r.ID, &r.GroupID, &r.Priority, &r.Direction, &r.Protocol, &r.Action,
		&r.PrefixCIDR, &r.IPv6, &srcStart, &srcEnd, &dstStart, &dstEnd)
	if err != nil {
		return Rule{}, err
	}
	if srcStart != nil && srcEnd != nil {
		r.SrcPorts = &PortRange{Start: *srcStart, End: *srcEnd}
	}
	if dstStart != nil && dstEnd != nil {
		r.DstPorts = &PortRange{Start: *dstStart, End: *dstEnd}
	}
	return r, nil
}

// AddRule validates and inserts a new rule into a group.
func (s *Store) AddRule(ctx context.Context, groupID uuid.UUID, req CreateRuleRequest) (Rule, error) {
	if err := ValidateRule(req); err != nil {
		return Rule{}, err
	}

	var srcStart, srcEnd, dstStart, dstEnd *int
	if req.SrcPorts != nil {
		srcStart, srcEnd = &req.SrcPorts.Start, &req.SrcPorts.End
	}
	if req.DstPorts != nil {
		dstStart, dstEnd = &req.DstPorts.Start, &req.DstPorts.End
	}

	row := s.dbtx.QueryRow(ctx,
		`INSERT INTO nsg_rules (id, group_id, priority, direction, protocol, action,
			prefix_cidr, ipv6, src_port_start, src_port_end, dst_port_start, dst_port_end)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING `+ruleColumns,
		uuid.New(), groupID, req.Priority, req.Direction, req.Protocol, req.Action,
		req.PrefixCIDR, req.IPv6, srcStart, srcEnd, dstStart, dstEnd,
	)
	return scanRuleRow(row)
}

// ListRules returns every rule in a group, evaluation order (priority ascending).
func (s *Store) ListRules(ctx context.Context, groupID uuid.UUID) ([]Rule, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT `+ruleColumns+` FROM nsg_rules WHERE group_id = $1 ORDER BY priority ASC`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rules: %w", err)
	}
	defer rows.Close()

	var out []Rule
	for rows.Next() {
		r, err := scanRuleRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning rule row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRule removes a single rule.
func (s *Store) DeleteRule(ctx context.Context, id uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM nsg_rules WHERE id = $1`, id)
	return err
}

// Attach associates a group with an instance.
func (s *Store) Attach(ctx context.Context, groupID, instanceID uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx,
		`INSERT INTO nsg_attachments (group_id, instance_id, attached_at) VALUES ($1, $2, now())
		 ON CONFLICT (group_id, instance_id) DO NOTHING`,
		groupID, instanceID,
	)
	return err
}

// Detach removes an association between a group and an instance.
func (s *Store) Detach(ctx context.Context, groupID, instanceID uuid.UUID) error {
	_, err := s.dbtx.Exec(ctx, `DELETE FROM nsg_attachments WHERE group_id = $1 AND instance_id = $2`, groupID, instanceID)
	return err
}

// ListAttachments returns every instance attached to a group.
func (s *Store) ListAttachments(ctx context.Context, groupID uuid.UUID) ([]Attachment, error) {
	rows, err := s.dbtx.Query(ctx,
		`SELECT group_id, instance_id, attached_at FROM nsg_attachments WHERE group_id = $1`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing attachments: %w", err)
	}
	defer rows.Close()

	var out []Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.GroupID, &a.InstanceID, &a.AttachedAt); err != nil {
			return nil, fmt.Errorf("scanning attachment row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
