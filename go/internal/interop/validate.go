package interop

import "fmt"

// ValidatePlan checks the shape of a decoded plan payload. It returns one
// message per problem found, or nil when the plan is usable.
func ValidatePlan(v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return []string{"plan must be an object"}
	}

	var problems []string
	if raw, present := obj["teams"]; present {
		teams, ok := raw.([]any)
		if !ok {
			problems = append(problems, "teams must be an array")
		} else {
			for i, t := range teams {
				team, ok := t.(map[string]any)
				if !ok {
					problems = append(problems, fmt.Sprintf("teams[%d] must be an object", i))
					continue
				}
				if name, ok := team["name"].(string); !ok || name == "" {
					problems = append(problems, fmt.Sprintf("teams[%d].name must be a non-empty string", i))
				}
			}
		}
	}

	if raw, present := obj["rounds"]; present {
		rounds, ok := raw.([]any)
		if !ok {
			problems = append(problems, "rounds must be an array")
		} else {
			for i, r := range rounds {
				problems = append(problems, checkRound(fmt.Sprintf("rounds[%d]", i), r)...)
			}
		}
	}

	if raw, present := obj["matchId"]; present {
		if _, ok := raw.(string); !ok {
			problems = append(problems, "matchId must be a string")
		}
	}
	return problems
}

func checkRound(path string, v any) []string {
	round, ok := v.(map[string]any)
	if !ok {
		return []string{path + " must be an object"}
	}

	var problems []string
	for _, field := range []string{"type", "category", "theme"} {
		if raw, present := round[field]; present {
			if _, ok := raw.(string); !ok {
				problems = append(problems, fmt.Sprintf("%s.%s must be a string", path, field))
			}
		}
	}
	if raw, present := round["durationsInSeconds"]; present {
		durations, ok := raw.([]any)
		if !ok {
			problems = append(problems, path+".durationsInSeconds must be an array")
		} else {
			for j, d := range durations {
				n, ok := d.(float64)
				switch {
				case !ok || n < 0:
					problems = append(problems, fmt.Sprintf("%s.durationsInSeconds[%d] must be a non-negative number", path, j))
				case n > MaxRoundSeconds:
					problems = append(problems, fmt.Sprintf("%s.durationsInSeconds[%d] exceeds %d seconds", path, j, MaxRoundSeconds))
				}
			}
		}
	}
	return problems
}

// ValidateEvent checks the shape of a decoded event payload.
func ValidateEvent(v any) []string {
	obj, ok := v.(map[string]any)
	if !ok {
		return []string{"event must be an object"}
	}

	var problems []string
	if t, ok := obj["type"].(string); !ok || t == "" {
		problems = append(problems, "type must be a non-empty string")
	}
	if raw, present := obj["payload"]; present && raw != nil {
		if _, ok := raw.(map[string]any); !ok {
			problems = append(problems, "payload must be an object")
		}
	}
	return problems
}
