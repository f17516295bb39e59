package automation

import "strings"

// Render substitutes {{key}} placeholders in a template with values
// from the variable map.
//
// Unresolved keys are left as the literal {{key}} token rather than
// erroring, so a missing variable is visible in the output instead of
// aborting the dispatch. No HTML or text escaping is performed; callers
// producing HTML email bodies are responsible for trusting their
// variable sources.
//
// Render is a pure function: no side effects, no suspension. Rendering
// output that contains no {{...}} tokens is a fixed point, so
// Render(Render(t, v), v) == Render(t, v) as long as substituted
// values don't themselves introduce placeholder syntax.
//
// Parameters:
//   - template: Text containing zero or more {{key}} placeholders
//   - variables: Replacement values keyed by placeholder name
//
// Returns:
//   - string: The rendered text
func Render(template string, variables map[string]string) string {
	if template == "" || len(variables) == 0 {
		return template
	}

	// Two replacements per variable: "{{key}}" -> value.
	pairs := make([]string, 0, len(variables)*2)
	for key, value := range variables {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// RenderAll applies Render to every value in a parameter map,
// returning a new map. The input map is never mutated.
func RenderAll(parameters map[string]string, variables map[string]string) map[string]string {
	if len(parameters) == 0 {
		return nil
	}
	rendered := make(map[string]string, len(parameters))
	for key, value := range parameters {
		rendered[key] = Render(value, variables)
	}
	return rendered
}
