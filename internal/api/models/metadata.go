package models

import "github.com/airfusion/airfusion/internal/airquality"

// AQIScale describes the index scale and its categories.
type AQIScale struct {
	Scale      string             `json:"scale"`
	MaxIndex   int                `json:"maxIndex"`
	Categories []AQIScaleCategory `json:"categories"`
	Sources    []string           `json:"sources"`
}

// AQIScaleCategory is one category with its health guidance.
type AQIScaleCategory struct {
	airquality.Category
	Recommendations []string `json:"recommendations"`
}

// Enums lists the enumerated values used in responses.
type Enums struct {
	Pollutants        []airquality.Pollutant        `json:"pollutants"`
	SourceStatuses    []airquality.Status           `json:"sourceStatuses"`
	DispersionImpacts []airquality.DispersionImpact `json:"dispersionImpacts"`
	DataQuality       []string                      `json:"dataQuality"`
	Confidence        []string                      `json:"confidence"`
	PrimarySources    []string                      `json:"primarySources"`
}
