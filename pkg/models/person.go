package models

// Unassigned bucket identity for rows without an assignee.
const (
	UnassignedID   = "unassigned"
	UnassignedName = "Unassigned"
	DefaultRole    = "Member"
)

// Load classifies how busy a person is.
type Load string

const (
	LoadLight    Load = "light"
	LoadBalanced Load = "balanced"
	LoadHeavy    Load = "heavy"
)

// LoadForCount derives the load from a task count alone:
// more than 6 tasks is heavy, more than 3 is balanced.
func LoadForCount(n int) Load {
	switch {
	case n > 6:
		return LoadHeavy
	case n > 3:
		return LoadBalanced
	default:
		return LoadLight
	}
}

// Person groups every task of one assignee across all connected workspaces.
// It is derived on each request and never stored.
type Person struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Role      string   `json:"role"`
	Load      Load     `json:"load"`
	Spaces    []string `json:"spaces"`
	Databases []string `json:"databases"`
	Tasks     []Task   `json:"tasks"`
}
