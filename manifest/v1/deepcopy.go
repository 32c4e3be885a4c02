package v1

// DeepCopy returns an independent copy of m.
func (m *Manifest) DeepCopy() *Manifest {
	if m == nil {
		return nil
	}
	out := *m
	if m.Model != nil {
		model := *m.Model
		model.Extensions = deepCopyMap(m.Model.Extensions)
		out.Model = &model
	}
	out.Extra = deepCopyMap(m.Extra)
	return &out
}

func deepCopyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch value := v.(type) {
	case map[string]any:
		return deepCopyMap(value)
	case []any:
		out := make([]any, len(value))
		for i, e := range value {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return value
	}
}
