package agentreconciler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// injectLabels sets extservice-id and extservice-version under
// metadata.labels in raw, operating on the parsed node tree rather than
// round-tripping through a struct so the rest of the document's key order
// and comments survive. The result is re-encoded from that tree with
// yaml.v3's defaults, so the original indentation and line layout are not
// preserved.
func injectLabels(raw string, serviceID uuid.UUID, version int) (string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(raw), &doc); err != nil {
		return "", fmt.Errorf("parsing pod spec: %w", err)
	}
	if len(doc.Content) == 0 {
		return "", fmt.Errorf("empty pod spec document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return "", fmt.Errorf("pod spec root is not a mapping")
	}

	metadata := mappingValue(root, "metadata")
	if metadata == nil {
		metadata = appendMapping(root, "metadata", &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
	}
	labels := mappingValue(metadata, "labels")
	if labels == nil {
		labels = appendMapping(metadata, "labels", &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"})
	}

	setMappingValue(labels, "extservice-id", serviceID.String())
	setMappingValue(labels, "extservice-version", fmt.Sprintf("%d", version))

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("re-encoding pod spec: %w", err)
	}
	return string(out), nil
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

// appendMapping adds a key/value pair to a mapping node and returns the
// value node.
func appendMapping(m *yaml.Node, key string, value *yaml.Node) *yaml.Node {
	keyNode := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
	m.Content = append(m.Content, keyNode, value)
	return value
}

// setMappingValue sets key to a scalar string value in a mapping node,
// overwriting any existing entry.
func setMappingValue(m *yaml.Node, key, value string) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
			return
		}
	}
	appendMapping(m, key, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value})
}

func podSpecFileName(serviceID uuid.UUID, version int) string {
	return fmt.Sprintf(podSpecFilePattern, serviceID.String(), version)
}

// reconcilePodSpecs writes a manifest for every desired service not already
// present, and removes any manifest under staticPodDir matching the
// extservice_ prefix that is no longer in the desired set.
func (r *Reconciler) reconcilePodSpecs(desired []DesiredService) error {
	want := make(map[string]DesiredService, len(desired))
	for _, d := range desired {
		want[podSpecFileName(d.ServiceID, d.Version)] = d
	}

	entries, err := os.ReadDir(r.staticPodDir)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading static pod dir: %w", err)
	}
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "extservice_") {
			present[e.Name()] = true
		}
	}

	for name, d := range want {
		if present[name] {
			continue
		}
		injected, err := injectLabels(d.PodSpecYAML, d.ServiceID, d.Version)
		if err != nil {
			r.logger.Error("injecting pod spec labels", "service_id", d.ServiceID, "version", d.Version, "error", err)
			continue
		}
		if err := r.writeFileAtomic(filepath.Join(r.staticPodDir, name), []byte(injected), 0o644); err != nil {
			r.logger.Error("writing pod spec", "service_id", d.ServiceID, "version", d.Version, "error", err)
		}
	}

	for name := range present {
		if _, ok := want[name]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(r.staticPodDir, name)); err != nil && !os.IsNotExist(err) {
			r.logger.Error("removing stale pod spec", "file", name, "error", err)
		}
	}

	return nil
}
