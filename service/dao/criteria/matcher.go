package criteria

// Equals reports whether actual matches a parameter value: a string, or any
// of a []string.
func Equals(actual string, value interface{}) bool {
	switch expected := value.(type) {
	case string:
		return actual == expected
	case []string:
		for _, candidate := range expected {
			if actual == candidate {
				return true
			}
		}
		return false
	}
	return true
}
