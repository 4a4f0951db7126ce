package nsg

import "testing"

func validRule() CreateRuleRequest {
	return CreateRuleRequest{
		Priority:   100,
		Direction:  DirectionInbound,
		Protocol:   ProtocolTCP,
		Action:     ActionAllow,
		PrefixCIDR: "10.0.0.0/24",
		IPv6:       false,
		DstPorts:   &PortRange{Start: 443, End: 443},
	}
}

func TestValidateRule_Valid(t *testing.T) {
	if err := ValidateRule(validRule()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRule_PriorityTooHigh(t *testing.T) {
	r := validRule()
	r.Priority = MaxRulePriority + 1
	if err := ValidateRule(r); err == nil {
		t.Fatal("expected error for priority exceeding maximum")
	}
}

func TestValidateRule_PortsForbiddenForANY(t *testing.T) {
	r := validRule()
	r.Protocol = ProtocolAny
	if err := ValidateRule(r); err == nil {
		t.Fatal("expected error: ANY protocol must not carry port ranges")
	}
}

func TestValidateRule_PortsForbiddenForICMP(t *testing.T) {
	r := validRule()
	r.Protocol = ProtocolICMP
	if err := ValidateRule(r); err == nil {
		t.Fatal("expected error: ICMP must not carry port ranges")
	}
}

func TestValidateRule_PortPairIncomplete(t *testing.T) {
	r := validRule()
	r.DstPorts = &PortRange{Start: 443}
	if err := ValidateRule(r); err == nil {
		t.Fatal("expected error: incomplete port pair")
	}
}

func TestValidateRule_PortEndBeforeStart(t *testing.T) {
	r := validRule()
	r.DstPorts = &PortRange{Start: 500, End: 100}
	if err := ValidateRule(r); err == nil {
		t.Fatal("expected error: end before start")
	}
}

func TestValidateRule_ICMPWithIPv6Flag(t *testing.T) {
	r := validRule()
	r.Protocol = ProtocolICMP
	r.IPv6 = true
	r.PrefixCIDR = "fd00::/64"
	r.DstPorts = nil
	if err := ValidateRule(r); err == nil {
		t.Fatal("expected error: ICMP is invalid on an ipv6 rule")
	}
}

func TestValidateRule_ICMP6WithoutIPv6Flag(t *testing.T) {
	r := validRule()
	r.Protocol = ProtocolICMP6
	r.IPv6 = false
	r.DstPorts = nil
	if err := ValidateRule(r); err == nil {
		t.Fatal("expected error: ICMP6 is invalid on an ipv4 rule")
	}
}

func TestValidateRule_PrefixVersionMismatch(t *testing.T) {
	r := validRule()
	r.IPv6 = true
	r.PrefixCIDR = "10.0.0.0/24"
	if err := ValidateRule(r); err == nil {
		t.Fatal("expected error: prefix is ipv4 but ipv6 flag is set")
	}
}

func TestValidateRule_ValidIPv6ICMP6(t *testing.T) {
	r := validRule()
	r.Protocol = ProtocolICMP6
	r.IPv6 = true
	r.PrefixCIDR = "fd00::/64"
	r.DstPorts = nil
	if err := ValidateRule(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
