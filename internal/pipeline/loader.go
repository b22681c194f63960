package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/phaseboard/internal/ctxlog"
	"github.com/vk/phaseboard/internal/fsutil"
)

// Loader reads pipeline definitions from HCL files.
type Loader struct{}

// NewLoader creates a new HCL pipeline loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses the pipeline definition at path, which may be a single .hcl
// file or a directory containing .hcl files. All pipeline blocks found are
// merged into one model, preserving declaration order.
//
// Attribute values that cannot be statically evaluated (for example
// half-filled templates) degrade to their zero value rather than failing the
// load; the raw block text is always captured so the dependency scan still
// sees them.
func (l *Loader) Load(ctx context.Context, path string) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Pipeline loader started.", "path", path)

	files, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("failed to discover pipeline files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl pipeline files found under %q", path)
	}
	logger.Debug("Discovered pipeline files.", "count", len(files))

	parser := hclparse.NewParser()
	model := &Pipeline{}

	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read pipeline file %s: %w", file, err)
		}
		hclFile, diags := parser.ParseHCL(src, file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse pipeline file %s: %w", file, diags)
		}
		body, ok := hclFile.Body.(*hclsyntax.Body)
		if !ok {
			return nil, fmt.Errorf("unexpected body type in %s", file)
		}
		if err := l.decodeFile(ctx, body, src, model); err != nil {
			return nil, fmt.Errorf("failed to decode pipeline file %s: %w", file, err)
		}
	}

	if len(model.Phases) == 0 {
		return nil, fmt.Errorf("no phase blocks found under %q", path)
	}

	if err := validate(model); err != nil {
		return nil, err
	}

	logger.Debug("Pipeline model loaded.", "phases", len(model.Phases), "inputs", len(model.Inputs))
	return model, nil
}

// decodeFile merges all pipeline blocks of one file into the model.
func (l *Loader) decodeFile(ctx context.Context, body *hclsyntax.Body, src []byte, model *Pipeline) error {
	logger := ctxlog.FromContext(ctx)

	for _, block := range body.Blocks {
		if block.Type != "pipeline" {
			logger.Warn("Ignoring unknown top-level block.", "type", block.Type)
			continue
		}
		for _, inner := range block.Body.Blocks {
			switch inner.Type {
			case "input":
				if len(inner.Labels) != 1 {
					return fmt.Errorf("input block requires exactly one label at %s", inner.TypeRange.String())
				}
				model.Inputs = append(model.Inputs, &InputParam{
					Name:     inner.Labels[0],
					Default:  attrString(inner.Body.Attributes, "default"),
					Position: len(model.Inputs),
				})
			case "phase":
				if len(inner.Labels) != 1 {
					return fmt.Errorf("phase block requires exactly one label at %s", inner.TypeRange.String())
				}
				model.Phases = append(model.Phases, decodePhase(inner, src))
			default:
				logger.Warn("Ignoring unknown block inside pipeline.", "type", inner.Type)
			}
		}
	}
	return nil
}

// decodePhase translates one phase block. The full block source text is kept
// verbatim for the graph builder's textual scan.
func decodePhase(block *hclsyntax.Block, src []byte) *Phase {
	attrs := block.Body.Attributes
	rng := hcl.RangeBetween(block.TypeRange, block.CloseBraceRange)
	raw := ""
	if rng.Start.Byte >= 0 && rng.End.Byte <= len(src) && rng.Start.Byte <= rng.End.Byte {
		raw = string(src[rng.Start.Byte:rng.End.Byte])
	}
	return &Phase{
		Name:         block.Labels[0],
		Instructions: attrString(attrs, "instructions"),
		Model:        attrString(attrs, "model"),
		Tools:        attrStringList(attrs, "tools"),
		Soundings:    attrInt(attrs, "soundings"),
		Handoff:      attrStringList(attrs, "handoff"),
		Context:      attrStringList(attrs, "context"),
		RawBody:      raw,
	}
}

// validate rejects models the rest of the system cannot key correctly.
func validate(model *Pipeline) error {
	seen := make(map[string]bool, len(model.Phases))
	for _, ph := range model.Phases {
		if ph.Name == "" {
			return fmt.Errorf("phase with empty name")
		}
		if seen[ph.Name] {
			return fmt.Errorf("duplicate phase name %q", ph.Name)
		}
		seen[ph.Name] = true
	}
	return nil
}

// attrString statically evaluates a string attribute. Unresolvable or
// non-string values degrade to "".
func attrString(attrs hclsyntax.Attributes, name string) string {
	attr, ok := attrs[name]
	if !ok {
		return ""
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() || !val.IsKnown() || val.IsNull() || val.Type() != cty.String {
		return ""
	}
	return val.AsString()
}

// attrStringList statically evaluates a list-of-strings attribute.
func attrStringList(attrs hclsyntax.Attributes, name string) []string {
	attr, ok := attrs[name]
	if !ok {
		return nil
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() || !val.IsKnown() || val.IsNull() || !val.CanIterateElements() {
		return nil
	}
	var out []string
	for it := val.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		if ev.IsKnown() && !ev.IsNull() && ev.Type() == cty.String {
			out = append(out, ev.AsString())
		}
	}
	return out
}

// attrInt statically evaluates a number attribute, truncating to int.
func attrInt(attrs hclsyntax.Attributes, name string) int {
	attr, ok := attrs[name]
	if !ok {
		return 0
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() || !val.IsKnown() || val.IsNull() || val.Type() != cty.Number {
		return 0
	}
	n, _ := val.AsBigFloat().Int64()
	return int(n)
}
