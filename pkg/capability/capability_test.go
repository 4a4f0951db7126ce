package capability

import "testing"

func TestSatisfies_GPUByNameGlob(t *testing.T) {
	set := Set{GPU: []GPU{
		{Name: "H100-80GB", Count: 4},
		{Name: "A100-40GB", Count: 2},
	}}

	if !set.Satisfies(Requirement{Type: TypeGPU, MinCount: 4, GPUNameGlob: "H100*"}) {
		t.Error("expected 4 H100 GPUs to satisfy requirement")
	}
	if set.Satisfies(Requirement{Type: TypeGPU, MinCount: 5, GPUNameGlob: "H100*"}) {
		t.Error("expected requirement for 5 H100 GPUs to fail with only 4 present")
	}
}

func TestSatisfies_Memory(t *testing.T) {
	set := Set{Memory: []Memory{{Capacity: 512 << 30}}}
	if !set.Satisfies(Requirement{Type: TypeMemory, MinMemoryBytes: 256 << 30}) {
		t.Error("expected 512GiB to satisfy a 256GiB requirement")
	}
	if set.Satisfies(Requirement{Type: TypeMemory, MinMemoryBytes: 1024 << 30}) {
		t.Error("expected 512GiB to fail a 1TiB requirement")
	}
}

func TestSatisfies_InfinibandExcludesDegraded(t *testing.T) {
	set := Set{Infiniband: []Infiniband{
		{Vendor: "Mellanox"},
		{Vendor: "Mellanox", InactiveDevices: []string{"mlx5_1"}},
	}}
	if !set.Satisfies(Requirement{Type: TypeInfiniband, MinCount: 1}) {
		t.Error("expected one healthy infiniband device to satisfy requirement")
	}
	if set.Satisfies(Requirement{Type: TypeInfiniband, MinCount: 2}) {
		t.Error("degraded device should not count toward requirement")
	}
}

func TestGlobMatch(t *testing.T) {
	cases := []struct {
		pattern, s string
		want       bool
	}{
		{"H100*", "H100-80GB", true},
		{"H100*", "A100-40GB", false},
		{"H100-80GB", "H100-80GB", true},
		{"", "", true},
	}
	for _, c := range cases {
		if got := globMatch(c.pattern, c.s); got != c.want {
			t.Errorf("globMatch(%q, %q) = %v, want %v", c.pattern, c.s, got, c.want)
		}
	}
}
