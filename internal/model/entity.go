// Package model defines the F1 entities, race records and derived statistics
// shared by the fetch, cache and aggregation layers.
package model

// Driver is a participant as identified by the upstream API.
type Driver struct {
	ID          string `json:"id"`
	Code        string `json:"code,omitempty"`
	Number      string `json:"number,omitempty"`
	GivenName   string `json:"given_name"`
	FamilyName  string `json:"family_name"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Name returns the display name.
func (d Driver) Name() string {
	switch {
	case d.GivenName == "":
		return d.FamilyName
	case d.FamilyName == "":
		return d.GivenName
	default:
		return d.GivenName + " " + d.FamilyName
	}
}

// Constructor is a team entry as identified by the upstream API.
type Constructor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Nationality string `json:"nationality,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Location is where a circuit sits.
type Location struct {
	Locality string  `json:"locality,omitempty"`
	Country  string  `json:"country,omitempty"`
	Lat      float64 `json:"lat,omitempty"`
	Long     float64 `json:"long,omitempty"`
}

// Circuit is a race track as identified by the upstream API.
type Circuit struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
	URL      string   `json:"url,omitempty"`
}

// EntityKind names one member of the entity family.
type EntityKind string

const (
	EntityDriver      EntityKind = "driver"
	EntityConstructor EntityKind = "constructor"
	EntityCircuit     EntityKind = "circuit"
)
