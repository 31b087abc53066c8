package airquality

// Category is an EPA air quality index category.
type Category struct {
	Level        string `json:"level"`
	Min          int    `json:"min"`
	Max          int    `json:"max"`
	Color        string `json:"color"`
	Description  string `json:"description"`
	HealthImpact string `json:"health_impact"`
}

// HealthAdvice is the guidance attached to a category.
type HealthAdvice struct {
	Level             string   `json:"level"`
	Message           string   `json:"message"`
	Recommendations   []string `json:"recommendations"`
	SensitiveGroups   string   `json:"sensitive_groups"`
	MaskNeeded        bool     `json:"mask_needed"`
	OutdoorActivities string   `json:"outdoor_activities"`
}

// Category levels.
const (
	LevelGood                  = "Good"
	LevelModerate              = "Moderate"
	LevelUnhealthyForSensitive = "Unhealthy for Sensitive Groups"
	LevelUnhealthy             = "Unhealthy"
	LevelVeryUnhealthy         = "Very Unhealthy"
	LevelHazardous             = "Hazardous"
)

var categories = []Category{
	{LevelGood, 0, 50, "#00e400", "Air quality is excellent", "No health impacts expected"},
	{LevelModerate, 51, 100, "#ffff00", "Air quality is acceptable", "Minor symptoms possible for very sensitive people"},
	{LevelUnhealthyForSensitive, 101, 150, "#ff7e00", "Sensitive groups should take precautions", "Increased symptoms for sensitive groups"},
	{LevelUnhealthy, 151, 200, "#ff0000", "Everyone should take precautions", "Health effects possible for everyone"},
	{LevelVeryUnhealthy, 201, 300, "#8f3f97", "Health alert for everyone", "Serious health effects for everyone"},
	{LevelHazardous, 301, MaxIndex, "#7e0023", "Health emergency", "Life-threatening conditions"},
}

var advice = map[string]HealthAdvice{
	LevelGood: {
		Level:   LevelGood,
		Message: "Air quality is excellent. Outdoor activities are safe for everyone.",
		Recommendations: []string{
			"Good time for outdoor exercise",
			"Safe for children to play outside",
		},
		SensitiveGroups:   "No precautions needed for any group",
		OutdoorActivities: "Highly recommended",
	},
	LevelModerate: {
		Level:   LevelModerate,
		Message: "Air quality is acceptable for most people.",
		Recommendations: []string{
			"Outdoor activities are generally safe",
			"Sensitive individuals should consider reducing prolonged outdoor exertion",
			"Early morning and evening are the best times for outdoor exercise",
		},
		SensitiveGroups:   "Sensitive individuals may experience minor symptoms",
		OutdoorActivities: "Generally safe",
	},
	LevelUnhealthyForSensitive: {
		Level:   LevelUnhealthyForSensitive,
		Message: "Sensitive groups should take precautions.",
		Recommendations: []string{
			"Sensitive individuals should consider wearing a mask",
			"Limit prolonged outdoor activities for sensitive groups",
			"Use air purifiers indoors",
			"Reduce outdoor exercise intensity",
		},
		SensitiveGroups:   "Children, elderly, and people with heart or lung conditions should limit outdoor exposure",
		MaskNeeded:        true,
		OutdoorActivities: "Limited for sensitive groups",
	},
	LevelUnhealthy: {
		Level:   LevelUnhealthy,
		Message: "Everyone should take precautions to limit exposure.",
		Recommendations: []string{
			"Wear an N95 or equivalent mask outdoors",
			"Stay indoors as much as possible",
			"Avoid outdoor exercise",
			"Keep windows and doors closed",
			"Have medication ready if you have a respiratory condition",
		},
		SensitiveGroups:   "High risk, should avoid outdoor activities entirely",
		MaskNeeded:        true,
		OutdoorActivities: "Not recommended",
	},
	LevelVeryUnhealthy: {
		Level:   LevelVeryUnhealthy,
		Message: "Health alert. Everyone should avoid outdoor activities.",
		Recommendations: []string{
			"Stay indoors",
			"Wear an N95 or P100 mask if you must go outside",
			"Seek medical attention if experiencing symptoms",
			"Cancel outdoor events",
			"Check on elderly neighbors and relatives",
		},
		SensitiveGroups:   "Emergency risk, seek medical attention if experiencing symptoms",
		MaskNeeded:        true,
		OutdoorActivities: "Strongly discouraged",
	},
	LevelHazardous: {
		Level:   LevelHazardous,
		Message: "Health emergency. Avoid all outdoor exposure.",
		Recommendations: []string{
			"Stay indoors",
			"N95 or P100 masks are required for any outdoor exposure",
			"Seek immediate medical attention if experiencing symptoms",
			"Monitor local emergency alerts",
		},
		SensitiveGroups:   "Life-threatening conditions, immediate medical attention may be required",
		MaskNeeded:        true,
		OutdoorActivities: "Prohibited",
	},
}

// Categories returns the full category scale, lowest first.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryFor returns the category an index falls into.
func CategoryFor(index int) Category {
	index = ClampIndex(index)
	for _, c := range categories {
		if index <= c.Max {
			return c
		}
	}
	return categories[len(categories)-1]
}

// AdviceFor returns the health advice for an index.
func AdviceFor(index int) HealthAdvice {
	a := advice[CategoryFor(index).Level]
	a.Recommendations = append([]string(nil), a.Recommendations...)
	return a
}
