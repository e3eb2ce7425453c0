package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Func builds a registration whose parameters are reflected from T. Struct
// fields are described with `json` and `jsonschema` tags, e.g.
//
//	Region string `json:"region" jsonschema:"description=The region to check"`
//	Season string `json:"season,omitempty" jsonschema:"default=current"`
//
// Fields without omitempty are required.
func Func[T any, R any](name, description string, fn func(ctx context.Context, args T) (R, error)) Registration {
	return Registration{
		Tool: Function(name, description, ParametersOf[T]()),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			var in T
			if err := decodeArgs(args, &in); err != nil {
				return nil, err
			}
			return fn(ctx, in)
		},
	}
}

// ParametersOf reflects the parameters of T.
func ParametersOf[T any]() Parameters {
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	var zero T
	s := r.Reflect(zero)

	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tool: reflect parameters of %T: %v", zero, err))
	}
	var p Parameters
	if err := json.Unmarshal(data, &p); err != nil {
		panic(fmt.Sprintf("tool: reflect parameters of %T: %v", zero, err))
	}
	return Object(p.Properties, p.Required...)
}

func decodeArgs(args map[string]any, out any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
