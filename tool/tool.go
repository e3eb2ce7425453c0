package tool

type Choice string

const (
	ChoiceAuto Choice = "auto"
	ChoiceNone Choice = "none"
)

const TypeFunction = "function"

type Tool struct {
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  Parameters `json:"parameters"`
}

type Parameters struct {
	Type       string     `json:"type"`
	Properties Properties `json:"properties"`
	Required   []string   `json:"required"`
}

type Properties map[string]Property

type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []any     `json:"enum,omitempty"`
	Default     any       `json:"default,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// Object returns object parameters with the given properties.
func Object(props Properties, required ...string) Parameters {
	if props == nil {
		props = Properties{}
	}
	if required == nil {
		required = []string{}
	}
	return Parameters{Type: "object", Properties: props, Required: required}
}

// Function returns a function tool definition.
func Function(name, description string, params Parameters) Tool {
	return Tool{
		Type:        TypeFunction,
		Name:        name,
		Description: description,
		Parameters:  params,
	}
}
