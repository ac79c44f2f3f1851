package placescout

// ParameterType is the JSON type of a tool parameter.
type ParameterType string

const (
	ParameterString ParameterType = "string"
)

// Property describes one tool parameter.
type Property struct {
	Type        ParameterType `json:"type"`
	Description string        `json:"description,omitempty"`
}

// ParameterSchema captures the subset of JSON Schema used for tool parameters.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// ToolSpec describes one callable capability advertised to the LLM.
type ToolSpec struct {
	Name        ToolName        `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// IsRequired reports whether the parameter must be supplied.
func (s ToolSpec) IsRequired(param string) bool {
	for _, r := range s.Parameters.Required {
		if r == param {
			return true
		}
	}
	return false
}

func (s ToolSpec) clone() ToolSpec {
	props := make(map[string]Property, len(s.Parameters.Properties))
	for k, v := range s.Parameters.Properties {
		props[k] = v
	}
	s.Parameters.Properties = props
	s.Parameters.Required = append([]string{}, s.Parameters.Required...)
	return s
}

var toolCatalog = []ToolSpec{
	{
		Name:        ToolGetPublicIP,
		Description: "Get the public IP address of the user.",
		Parameters: ParameterSchema{
			Type:       "object",
			Properties: map[string]Property{},
			Required:   []string{},
		},
	},
	{
		Name:        ToolGetLocation,
		Description: "Get city location based on public user IP address.",
		Parameters: ParameterSchema{
			Type: "object",
			Properties: map[string]Property{
				"ip_address": {Type: ParameterString, Description: "The public IP address of the user."},
			},
			Required: []string{"ip_address"},
		},
	},
	{
		Name:        ToolGetLocationInfo,
		Description: "Get facts about city",
		Parameters: ParameterSchema{
			Type: "object",
			Properties: map[string]Property{
				"name": {Type: ParameterString, Description: "The name of the city."},
			},
			Required: []string{"name"},
		},
	},
}

// Catalog returns the fixed set of tools, in advertisement order.
func Catalog() []ToolSpec {
	out := make([]ToolSpec, len(toolCatalog))
	for i, spec := range toolCatalog {
		out[i] = spec.clone()
	}
	return out
}

// LookupSpec finds the catalog entry for name.
func LookupSpec(name ToolName) (ToolSpec, bool) {
	for _, spec := range toolCatalog {
		if spec.Name == name {
			return spec.clone(), true
		}
	}
	return ToolSpec{}, false
}

// MustSpec is LookupSpec for names known at compile time.
func MustSpec(name ToolName) ToolSpec {
	spec, ok := LookupSpec(name)
	if !ok {
		panic("placescout: no catalog entry for " + string(name))
	}
	return spec
}
