package search

import "fmt"

// State is the lookup state of the controller.
type State int

const (
	Idle State = iota
	CountrySelected
	CitySelected
	Searching
	Resolved
	Failed
)

var stateNames = [...]string{"idle", "country_selected", "city_selected", "searching", "resolved", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state by name in JSON views.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
