package pii

// NHS numbers carry a mod-11 check digit: the first nine digits are weighted
// 10 down to 2, and the check digit is 11 minus the weighted sum mod 11 (a
// result of 11 maps to 0, a result of 10 means the number is invalid).

// ValidNationalID reports whether value is a structurally valid NHS number.
// Formatting characters (spaces, dashes) are ignored.
func ValidNationalID(value string) bool {
	digits := make([]int, 0, 10)
	for _, r := range value {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) != 10 {
		return false
	}

	sum := 0
	for i := 0; i < 9; i++ {
		sum += digits[i] * (10 - i)
	}

	check := 11 - sum%11
	if check == 11 {
		check = 0
	}
	if check == 10 {
		return false
	}
	return check == digits[9]
}
