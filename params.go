package odbcscan

import "fmt"

// maxParameters limits the number of parameters to prevent unbounded memory allocation.
const maxParameters = 10000

// ParameterError represents an error with parameter binding
type ParameterError struct {
	Name    string
	Message string
}

func (e *ParameterError) Error() string {
	if e.Name != "" {
		return "parameter '" + e.Name + "': " + e.Message
	}
	return "parameter: " + e.Message
}

// NamedParams holds parsed named parameter information
type NamedParams struct {
	// Query is the converted query with positional ? placeholders
	Query string

	// Names contains the parameter names in order of their first appearance
	Names []string

	// Positions maps parameter names to their positions (1-based, matching ODBC binding)
	// A single named parameter may appear multiple times in the query
	Positions map[string][]int
}

// ParseNamedParams parses a query with named parameters and converts to positional placeholders.
// Supports the following named parameter styles:
//   - :name  (Oracle/PostgreSQL style)
//   - @name  (SQL Server style)
//   - $name  (PostgreSQL style - not $1 which is positional)
//
// Returns nil if no named parameters are found (query uses positional ? only).
// The original query is preserved if it contains only ? placeholders.
func ParseNamedParams(query string) *NamedParams {
	if len(query) == 0 {
		return nil
	}

	// Quick scan to see if we have any named parameters
	hasNamed := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		if c == ':' || c == '@' || c == '$' {
			if i > 0 && query[i-1] == c {
				continue
			}
			// Check if followed by a valid identifier start
			if i+1 < len(query) && isIdentStart(query[i+1]) {
				hasNamed = true
				break
			}
		}
	}

	if !hasNamed {
		return nil
	}

	result := &NamedParams{
		Positions: make(map[string][]int),
	}

	var output []byte
	position := 0
	i := 0

	for i < len(query) {
		c := query[i]

		// Skip string literals (single quotes)
		if c == '\'' {
			start := i
			i++
			for i < len(query) {
				if query[i] == '\'' {
					if i+1 < len(query) && query[i+1] == '\'' {
						// Escaped quote
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			output = append(output, query[start:i]...)
			continue
		}

		// Skip string literals (double quotes - identifiers)
		if c == '"' {
			start := i
			i++
			for i < len(query) {
				if query[i] == '"' {
					if i+1 < len(query) && query[i+1] == '"' {
						// Escaped quote
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			output = append(output, query[start:i]...)
			continue
		}

		// Skip comments (-- style)
		if c == '-' && i+1 < len(query) && query[i+1] == '-' {
			start := i
			for i < len(query) && query[i] != '\n' {
				i++
			}
			output = append(output, query[start:i]...)
			continue
		}

		// Skip comments (/* */ style)
		if c == '/' && i+1 < len(query) && query[i+1] == '*' {
			start := i
			i += 2
			for i+1 < len(query) {
				if query[i] == '*' && query[i+1] == '/' {
					i += 2
					break
				}
				i++
			}
			output = append(output, query[start:i]...)
			continue
		}

		// Casts (x::int) and system variables (@@rowcount) are not parameters
		if (c == ':' || c == '@') && i+1 < len(query) && query[i+1] == c {
			output = append(output, c, c)
			i += 2
			for i < len(query) && isIdentChar(query[i]) {
				output = append(output, query[i])
				i++
			}
			continue
		}

		// Check for named parameter
		if (c == ':' || c == '@' || c == '$') && i+1 < len(query) && isIdentStart(query[i+1]) {
			// Extract the parameter name
			start := i + 1
			end := start
			for end < len(query) && isIdentChar(query[end]) {
				end++
			}

			name := query[start:end]
			position++

			// Record the position for this name
			result.Positions[name] = append(result.Positions[name], position)

			// Add to names list if first occurrence
			found := false
			for _, n := range result.Names {
				if n == name {
					found = true
					break
				}
			}
			if !found {
				result.Names = append(result.Names, name)
			}

			// Replace with ?
			output = append(output, '?')
			i = end
			continue
		}

		// Regular character - copy as-is
		output = append(output, c)
		i++
	}

	if len(result.Names) == 0 {
		return nil
	}

	result.Query = string(output)
	return result
}

// isIdentStart returns true if c is a valid identifier start character
func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

// isIdentChar returns true if c is a valid identifier character
func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// ParamSet is a reusable batch of parameter values, positional or named.
// Binding a ParamSet clones its values, so one set can feed many
// executions.
type ParamSet struct {
	values []Value
	names  map[string]int
}

// NewParamSet returns a positional set holding values.
func NewParamSet(values ...Value) *ParamSet {
	return &ParamSet{values: values}
}

// ParamSetOf converts Go scalars with ValueOf into a positional set.
func ParamSetOf(args ...any) (*ParamSet, error) {
	p := &ParamSet{values: make([]Value, len(args))}
	for i, a := range args {
		v, err := ValueOf(a)
		if err != nil {
			return nil, &ParameterError{Message: err.Error()}
		}
		p.values[i] = v
	}
	return p, nil
}

// Len returns the number of values.
func (p *ParamSet) Len() int { return len(p.values) }

// Set replaces the value at 0-based index i, growing the set as needed.
func (p *ParamSet) Set(i int, v Value) error {
	if i < 0 || i >= maxParameters {
		return &ParameterError{Message: fmt.Sprintf("index %d out of range", i)}
	}
	for len(p.values) <= i {
		p.values = append(p.values, NullValue())
	}
	p.values[i] = v
	return nil
}

// SetNamed assigns v to the named parameter name (without its prefix).
func (p *ParamSet) SetNamed(name string, v Value) {
	if p.names == nil {
		p.names = make(map[string]int)
	}
	if i, ok := p.names[name]; ok {
		p.values[i] = v
		return
	}
	p.names[name] = len(p.values)
	p.values = append(p.values, v)
}

// Named reports whether values were assigned by name.
func (p *ParamSet) Named() bool { return len(p.names) > 0 }

// Values returns copies of the values in positional order.
func (p *ParamSet) Values() []Value {
	out := make([]Value, len(p.values))
	for i := range p.values {
		out[i] = p.values[i].Clone()
	}
	return out
}

// Resolve lays the set out for a query rewritten by ParseNamedParams. A
// named value used at several markers is copied to each of them. For
// positional sets, or a nil np, the values are returned in order.
func (p *ParamSet) Resolve(np *NamedParams) ([]Value, error) {
	if np == nil || !p.Named() {
		if np != nil && p.Len() > 0 {
			return nil, &ParameterError{Message: "query uses named parameters but values are positional"}
		}
		return p.Values(), nil
	}
	total := 0
	for _, positions := range np.Positions {
		total += len(positions)
	}
	out := make([]Value, total)
	for _, name := range np.Names {
		i, ok := p.names[name]
		if !ok {
			return nil, &ParameterError{Name: name, Message: "no value supplied"}
		}
		for _, pos := range np.Positions[name] {
			out[pos-1] = p.values[i].Clone()
		}
	}
	return out, nil
}
