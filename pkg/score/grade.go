package score

import "github.com/fatih/color"

// Grade is a letter grade for a score.
type Grade struct {
	Letter string `json:"letter"`
	Label  string `json:"label"`
	Color  string `json:"color"`
	Min    int    `json:"min"`
}

// grades is ordered by descending minimum score.
var grades = []Grade{
	{Letter: "A", Label: "Excellent", Color: "green", Min: 90},
	{Letter: "B", Label: "Good", Color: "green", Min: 80},
	{Letter: "C", Label: "Acceptable", Color: "yellow", Min: 70},
	{Letter: "D", Label: "Needs Work", Color: "yellow", Min: 60},
	{Letter: "E", Label: "Poor", Color: "red", Min: 50},
	{Letter: "F", Label: "Critical", Color: "red", Min: 0},
}

// GradeFor returns the first grade whose minimum is at or below score.
func GradeFor(score int) Grade {
	for _, g := range grades {
		if score >= g.Min {
			return g
		}
	}

	return grades[len(grades)-1]
}

// Attribute returns the terminal colour for the grade.
func (g Grade) Attribute() color.Attribute {
	switch g.Color {
	case "green":
		return color.FgGreen
	case "yellow":
		return color.FgYellow
	default:
		return color.FgRed
	}
}

// String renders the grade as "A (Excellent)".
func (g Grade) String() string {
	return g.Letter + " (" + g.Label + ")"
}
