package rules

import "strings"

// Hard bounds for a student audience. Discovery preferences are clamped
// into the same range, so no filter can reach outside it.
const (
	MinAge = 18
	MaxAge = 30

	MinStudyYear = 1
	MaxStudyYear = 7

	MaxBioLen = 500
	MaxPhotos = 6

	MinDistanceKM = 1
	MaxDistanceKM = 100

	CandidateLimit = 10
)

func AgeAllowed(age int) bool {
	return age >= MinAge && age <= MaxAge
}

func StudyYearAllowed(year int) bool {
	return year >= MinStudyYear && year <= MaxStudyYear
}

func DistanceAllowed(km int) bool {
	return km >= MinDistanceKM && km <= MaxDistanceKM
}

// ClampAgeRange normalizes a preference window into the allowed bounds.
func ClampAgeRange(min, max int) (int, int) {
	if min < MinAge {
		min = MinAge
	}
	if max > MaxAge || max <= 0 {
		max = MaxAge
	}
	if min > max {
		min, max = max, min
	}
	return min, max
}

// UniversityFromEmail derives the campus key from an institutional email.
// The key is the lowercased domain part; ok is false for malformed input.
func UniversityFromEmail(email string) (string, bool) {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "", false
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))
	if domain == "" || !strings.Contains(domain, ".") {
		return "", false
	}
	return domain, true
}
