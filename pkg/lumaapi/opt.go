package lumaapi

// OptString is an optional string parameter. Only set values are sent.
type OptString struct {
	Value string
	Set   bool
}

// SetTo sets the value.
func (o *OptString) SetTo(v string) {
	o.Set = true
	o.Value = v
}

// IsSet reports whether the value was set.
func (o OptString) IsSet() bool { return o.Set }

// Get returns the value and whether it was set.
func (o OptString) Get() (string, bool) { return o.Value, o.Set }

// Or returns the value if set, or d otherwise.
func (o OptString) Or(d string) string {
	if o.Set {
		return o.Value
	}
	return d
}

// OptBool is an optional boolean parameter.
type OptBool struct {
	Value bool
	Set   bool
}

// SetTo sets the value.
func (o *OptBool) SetTo(v bool) {
	o.Set = true
	o.Value = v
}

// IsSet reports whether the value was set.
func (o OptBool) IsSet() bool { return o.Set }
