package mapping

import (
	"github.com/Konsultn-Engineering/sqlsession/param"
)

// ParameterMapping names the parameter property bound to one '?' placeholder.
type ParameterMapping struct {
	Property string
}

// BoundSQL is statement text resolved against one parameter value. The text
// uses '?' placeholders; executors rebind them for the target driver.
type BoundSQL struct {
	SQL               string
	ParameterMappings []ParameterMapping
	Parameter         any
}

// Args resolves every parameter mapping against Parameter, in placeholder
// order.
func (b *BoundSQL) Args() ([]any, error) {
	if len(b.ParameterMappings) == 0 {
		return nil, nil
	}
	args := make([]any, len(b.ParameterMappings))
	for i, pm := range b.ParameterMappings {
		v, err := param.Lookup(b.Parameter, pm.Property)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

// Copy returns a deep copy that shares no slices with b.
func (b *BoundSQL) Copy() *BoundSQL {
	c := &BoundSQL{SQL: b.SQL, Parameter: b.Parameter}
	if b.ParameterMappings != nil {
		c.ParameterMappings = append(make([]ParameterMapping, 0, len(b.ParameterMappings)), b.ParameterMappings...)
	}
	return c
}
