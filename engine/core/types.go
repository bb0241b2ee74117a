package core

// Input is the JSON-ready snapshot of what a step consumed.
type Input map[string]any

// Output is the JSON-ready snapshot of what a step produced.
type Output map[string]any

func (i Input) Clone() Input {
	if i == nil {
		return nil
	}
	out := make(Input, len(i))
	for k, v := range i {
		out[k] = v
	}
	return out
}

func (o Output) Clone() Output {
	if o == nil {
		return nil
	}
	out := make(Output, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}
