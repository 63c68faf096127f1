package analysis

import "strings"

const statIDLength = 8

// checkStatID validates the trailing check digit of a numeric stat id. Ids
// shorter than eight digits are left-padded with zeros first.
func checkStatID(statID string) (digitsOnly, valid bool) {
	for _, r := range statID {
		if r < '0' || r > '9' {
			return false, false
		}
	}
	if len(statID) < statIDLength {
		statID = strings.Repeat("0", statIDLength-len(statID)) + statID
	}
	body, check := statID[:len(statID)-1], int(statID[len(statID)-1]-'0')

	remainder := weightedSum(body, 1) % 11
	if remainder >= 10 {
		remainder = weightedSum(body, 3) % 11
	}
	return true, remainder == check || remainder == 10
}

func weightedSum(digits string, offset int) int {
	sum := 0
	for i := 0; i < len(digits); i++ {
		sum += int(digits[i]-'0') * (i%10 + offset)
	}
	return sum
}
