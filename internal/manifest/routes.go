// Package manifest copies per-module build descriptors into the extracted
// tree and rewrites the route manifest to mirror the selected sub-packages.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"github.com/modkit/cli/internal/output"
)

// RoutesKey is the manifest field rewritten on every build.
const RoutesKey = "routes"

// CodeRoute is the value written for every selected sub-package.
func CodeRoute() map[string]any {
	return map[string]any{"type": "code"}
}

// PatchRoutes replaces the routes field of the JSON object in doc with one
// code route per entry of pkgs. Other fields are kept. The result has sorted
// keys, two-space indentation and a trailing newline.
func PatchRoutes(doc []byte, pkgs []string) ([]byte, error) {
	var obj map[string]any
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid JSON: unexpected content after the top-level value")
	}
	if obj == nil {
		return nil, fmt.Errorf("manifest must be a JSON object")
	}

	routes := make(map[string]any, len(pkgs))
	for _, pkg := range pkgs {
		routes[pkg] = CodeRoute()
	}
	obj[RoutesKey] = routes

	return encode(obj)
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Routes returns the route names of a manifest document.
func Routes(doc []byte) ([]string, error) {
	var obj struct {
		Routes map[string]json.RawMessage `json:"routes"`
	}
	if err := json.Unmarshal(doc, &obj); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	names := make([]string, 0, len(obj.Routes))
	for name := range obj.Routes {
		names = append(names, name)
	}
	return sortStrings(names), nil
}

// Diff renders a structural diff between two manifest documents. Both are
// normalized to YAML first. An empty string means no change.
func Diff(name string, before, after []byte, useColor bool) (string, error) {
	from, err := yaml.JSONToYAML(before)
	if err != nil {
		return "", fmt.Errorf("normalizing %s: %w", name, err)
	}
	to, err := yaml.JSONToYAML(after)
	if err != nil {
		return "", fmt.Errorf("normalizing %s: %w", name, err)
	}
	return output.RenderDocumentDiff(name+" (current)", from, name+" (patched)", to, useColor)
}
