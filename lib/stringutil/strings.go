package stringutil

// Override - pass in a list of vals, the right most value that is not empty will override.
func Override(vals ...string) string {
	var retVal string
	for _, val := range vals {
		if val != "" {
			retVal = val
		}
	}

	return retVal
}

// Empty returns true if any of the values is empty.
func Empty(vals ...string) bool {
	for _, val := range vals {
		if val == "" {
			return true
		}
	}

	return false
}
