package domain

// ProfileUpdate carries the non-sensitive identity fields copied onto a profile.
// Empty fields are left untouched.
type ProfileUpdate struct {
	FirstName   string
	LastName    string
	Birthdate   string
	Nationality string
}

// IsEmpty reports whether the update would change nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.FirstName == "" && p.LastName == "" && p.Birthdate == "" && p.Nationality == ""
}
