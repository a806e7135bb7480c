package store

// UserProfile is the per-user personalization record.
type UserProfile struct {
	UserID            string
	Name              string
	DietaryPreference string
	LearningLevel     string
	Interests         []string
	Location          string
	Latitude          *float64
	Longitude         *float64
	CreatedTs         int64
	UpdatedTs         int64
}

// Clone returns a deep copy of the profile.
func (p *UserProfile) Clone() *UserProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Interests != nil {
		c.Interests = append([]string(nil), p.Interests...)
	}
	if p.Latitude != nil {
		lat := *p.Latitude
		c.Latitude = &lat
	}
	if p.Longitude != nil {
		lon := *p.Longitude
		c.Longitude = &lon
	}
	return &c
}

// HasCoordinates reports whether both latitude and longitude are known.
func (p *UserProfile) HasCoordinates() bool {
	return p != nil && p.Latitude != nil && p.Longitude != nil
}

// UpdateUserProfile describes a partial profile update. Nil fields are left unchanged.
type UpdateUserProfile struct {
	UserID            string
	Name              *string
	DietaryPreference *string
	LearningLevel     *string
	// Interests replaces the stored list when non-nil.
	Interests []string
	Location  *string
	Latitude  *float64
	Longitude *float64
}

// IsEmpty reports whether the update changes nothing.
func (u *UpdateUserProfile) IsEmpty() bool {
	return u.Name == nil && u.DietaryPreference == nil && u.LearningLevel == nil &&
		u.Interests == nil && u.Location == nil && u.Latitude == nil && u.Longitude == nil
}

// Apply merges the update into p.
func (u *UpdateUserProfile) Apply(p *UserProfile) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.DietaryPreference != nil {
		p.DietaryPreference = *u.DietaryPreference
	}
	if u.LearningLevel != nil {
		p.LearningLevel = *u.LearningLevel
	}
	if u.Interests != nil {
		p.Interests = append([]string(nil), u.Interests...)
	}
	if u.Location != nil {
		p.Location = *u.Location
		// A new place name invalidates coordinates unless new ones come with it.
		if u.Latitude == nil || u.Longitude == nil {
			p.Latitude, p.Longitude = nil, nil
		}
	}
	if u.Latitude != nil && u.Longitude != nil {
		lat, lon := *u.Latitude, *u.Longitude
		p.Latitude, p.Longitude = &lat, &lon
	}
}
