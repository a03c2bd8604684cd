package enums

type Gender string

const (
	GenderMale      Gender = "male"
	GenderFemale    Gender = "female"
	GenderNonBinary Gender = "non_binary"
)

func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderNonBinary:
		return true
	default:
		return false
	}
}

type InterestedIn string

const (
	InterestedInMale   InterestedIn = "male"
	InterestedInFemale InterestedIn = "female"
	InterestedInBoth   InterestedIn = "both"
)

func (i InterestedIn) Valid() bool {
	switch i {
	case InterestedInMale, InterestedInFemale, InterestedInBoth:
		return true
	default:
		return false
	}
}

// Accepts reports whether a profile with this preference is open to gender g.
func (i InterestedIn) Accepts(g Gender) bool {
	if i == InterestedInBoth {
		return true
	}
	return string(i) == string(g)
}
