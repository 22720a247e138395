package agent

import "reporter/internal/config"

// BaselineType is used when neither the task nor the global block names a type.
const BaselineType = "financial"

// Merge overlays task on global. Task keys win; nil values fall through.
func Merge(global, task config.Values) Config {
	return MergeWithDefaults(nil, global, task)
}

// MergeWithDefaults overlays task on global on defaults. The resulting "type"
// falls back to agent_type and then to BaselineType.
func MergeWithDefaults(defaults, global, task config.Values) Config {
	out := make(Config, len(defaults)+len(global)+len(task))
	for _, layer := range []config.Values{defaults, global, task} {
		for k, v := range layer {
			if v == nil {
				continue
			}
			out[k] = v
		}
	}
	if out.String("type") == "" {
		if t := out.String("agent_type"); t != "" {
			out["type"] = t
		} else {
			out["type"] = BaselineType
		}
	}
	return out
}
