package nsg

import (
	"fmt"
	"net/netip"
)

// ValidateRule enforces the invariants a security group rule must satisfy
// before it is accepted, matching the checks the DPU-side enforcement agent
// assumes already hold by the time a rule reaches it.
func ValidateRule(req CreateRuleRequest) error {
	if req.Priority > MaxRulePriority {
		return fmt.Errorf("priority %d exceeds maximum %d", req.Priority, MaxRulePriority)
	}

	switch req.Protocol {
	case ProtocolAny, ProtocolICMP, ProtocolICMP6:
		if req.SrcPorts != nil || req.DstPorts != nil {
			return fmt.Errorf("protocol %s does not accept port ranges", req.Protocol)
		}
	case ProtocolTCP, ProtocolUDP:
		// ports optional for TCP/UDP (unset means "all ports")
	default:
		return fmt.Errorf("unsupported protocol %s", req.Protocol)
	}

	if err := validatePortPair(req.SrcPorts); err != nil {
		return fmt.Errorf("src_ports: %w", err)
	}
	if err := validatePortPair(req.DstPorts); err != nil {
		return fmt.Errorf("dst_ports: %w", err)
	}

	if req.Protocol == ProtocolICMP && req.IPv6 {
		return fmt.Errorf("ICMP is not valid for an ipv6 rule; use ICMP6")
	}
	if req.Protocol == ProtocolICMP6 && !req.IPv6 {
		return fmt.Errorf("ICMP6 is not valid for an ipv4 rule; use ICMP")
	}

	prefix, err := netip.ParsePrefix(req.PrefixCIDR)
	if err != nil {
		return fmt.Errorf("invalid prefix_cidr: %w", err)
	}
	if prefix.Addr().Is6() != req.IPv6 {
		return fmt.Errorf("prefix_cidr IP version does not match ipv6 flag")
	}

	return nil
}

// validatePortPair enforces that a PortRange, if present, has both ends set
// with end >= start. A nil range (ports not specified) is always valid.
func validatePortPair(r *PortRange) error {
	if r == nil {
		return nil
	}
	if r.Start == 0 || r.End == 0 {
		return fmt.Errorf("start and end are both required")
	}
	if r.End < r.Start {
		return fmt.Errorf("end (%d) must be >= start (%d)", r.End, r.Start)
	}
	if r.Start < 1 || r.End > 65535 {
		return fmt.Errorf("port values must be in [1, 65535]")
	}
	return nil
}
