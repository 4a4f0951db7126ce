// Package nsg implements network security groups: ordered allow/deny rule
// sets attached to instances, plus aggregation of per-DPU propagation state
// into a single group-wide status.
package nsg

import (
	"time"

	"github.com/google/uuid"
)

// MaxRulePriority bounds how low-priority (high-numbered) a rule may be.
// Lower numbers evaluate first.
const MaxRulePriority = 65000

// Direction is the traffic direction a rule applies to.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Protocol is the IP protocol a rule matches.
type Protocol string

const (
	ProtocolAny  Protocol = "ANY"
	ProtocolTCP  Protocol = "TCP"
	ProtocolUDP  Protocol = "UDP"
	ProtocolICMP Protocol = "ICMP"
	ProtocolICMP6 Protocol = "ICMP6"
)

// Action is what a matching rule does to traffic.
type Action string

const (
	ActionAllow Action = "ALLOW"
	ActionDeny  Action = "DENY"
)

// PortRange is an inclusive [Start, End] port range.
type PortRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Group is a named, ordered collection of rules attachable to instances.
type Group struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Rule is a single entry in a security group's rule list.
type Rule struct {
	ID          uuid.UUID  `json:"id"`
	GroupID     uuid.UUID  `json:"group_id"`
	Priority    int        `json:"priority"`
	Direction   Direction  `json:"direction"`
	Protocol    Protocol   `json:"protocol"`
	Action      Action     `json:"action"`
	PrefixCIDR  string     `json:"prefix_cidr"`
	IPv6        bool       `json:"ipv6"`
	SrcPorts    *PortRange `json:"src_ports,omitempty"`
	DstPorts    *PortRange `json:"dst_ports,omitempty"`
}

// Attachment associates a security group with an instance's network interface.
type Attachment struct {
	GroupID    uuid.UUID `json:"group_id"`
	InstanceID uuid.UUID `json:"instance_id"`
	AttachedAt time.Time `json:"attached_at"`
}

// PropagationStatus summarizes how completely a group's current rule set has
// reached the DPUs enforcing it.
type PropagationStatus string

const (
	PropagationUnknown PropagationStatus = "UNKNOWN"
	PropagationFull    PropagationStatus = "FULL"
	PropagationPartial PropagationStatus = "PARTIAL"
	PropagationNone    PropagationStatus = "NONE"
	PropagationError   PropagationStatus = "ERROR"
)

// CreateGroupRequest creates a new, empty security group.
type CreateGroupRequest struct {
	TenantID    uuid.UUID `json:"tenant_id" validate:"required"`
	Name        string    `json:"name" validate:"required,min=1,max=200"`
	Description string    `json:"description" validate:"max=500"`
}

// CreateRuleRequest adds a rule to a group.
type CreateRuleRequest struct {
	Priority   int        `json:"priority" validate:"required,min=1"`
	Direction  Direction  `json:"direction" validate:"required,oneof=INBOUND OUTBOUND"`
	Protocol   Protocol   `json:"protocol" validate:"required,oneof=ANY TCP UDP ICMP ICMP6"`
	Action     Action     `json:"action" validate:"required,oneof=ALLOW DENY"`
	PrefixCIDR string     `json:"prefix_cidr" validate:"required,cidr"`
	IPv6       bool       `json:"ipv6"`
	SrcPorts   *PortRange `json:"src_ports,omitempty"`
	DstPorts   *PortRange `json:"dst_ports,omitempty"`
}

// ReportPropagationRequest is posted by a DPU agent after applying (or
// failing to apply) a group's current rule generation.
type ReportPropagationRequest struct {
	InstanceID uuid.UUID `json:"instance_id" validate:"required"`
	Applied    bool      `json:"applied"`
	Error      string    `json:"error,omitempty"`
}
