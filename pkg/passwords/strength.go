package passwords

import "unicode"

// StrengthResult reports how a candidate password scored against the five
// strength criteria.
type StrengthResult struct {
	IsValid  bool     `json:"is_valid"`
	Score    int      `json:"score"`
	Feedback []string `json:"feedback"`
}

// ValidateStrength scores a password one point per criterion: minimum length,
// uppercase, lowercase, digit, special character. Feedback lines come back in
// that fixed order so identical input always yields identical output.
func ValidateStrength(password string) StrengthResult {
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	res := StrengthResult{Feedback: []string{}}

	if len(password) >= 8 {
		res.Score++
	} else {
		res.Feedback = append(res.Feedback, "Password must be at least 8 characters long.")
	}
	if hasUpper {
		res.Score++
	} else {
		res.Feedback = append(res.Feedback, "Password must contain at least one uppercase letter.")
	}
	if hasLower {
		res.Score++
	} else {
		res.Feedback = append(res.Feedback, "Password must contain at least one lowercase letter.")
	}
	if hasDigit {
		res.Score++
	} else {
		res.Feedback = append(res.Feedback, "Password must contain at least one number.")
	}
	if hasSpecial {
		res.Score++
	} else {
		res.Feedback = append(res.Feedback, "Password must contain at least one special character.")
	}

	res.IsValid = res.Score == 5
	return res
}
