package handler

import (
	"net/http"

	"github.com/airfusion/airfusion/internal/airquality"
	"github.com/airfusion/airfusion/internal/api/models"
	"github.com/airfusion/airfusion/internal/api/response"
)

// MetadataHandler serves static reference data.
type MetadataHandler struct{}

// NewMetadataHandler creates a new MetadataHandler.
func NewMetadataHandler() *MetadataHandler {
	return &MetadataHandler{}
}

// GetAQIScale handles GET /v1/metadata/aqi-scale.
func (h *MetadataHandler) GetAQIScale(w http.ResponseWriter, r *http.Request) {
	categories := airquality.Categories()
	scale := models.AQIScale{
		Scale:      "US EPA",
		MaxIndex:   airquality.MaxIndex,
		Categories: make([]models.AQIScaleCategory, 0, len(categories)),
		Sources:    []string{"EPA Air Quality Standards", "WHO Air Quality Guidelines"},
	}
	for _, c := range categories {
		scale.Categories = append(scale.Categories, models.AQIScaleCategory{
			Category:        c,
			Recommendations: airquality.AdviceFor(c.Min).Recommendations,
		})
	}

	w.Header().Set("Cache-Control", "public, max-age=86400")
	response.JSON(w, r, http.StatusOK, scale)
}

// GetEnums handles GET /v1/metadata/enums.
func (h *MetadataHandler) GetEnums(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=86400")
	response.JSON(w, r, http.StatusOK, models.Enums{
		Pollutants: []airquality.Pollutant{
			airquality.PollutantPM25,
			airquality.PollutantPM10,
			airquality.PollutantO3,
			airquality.PollutantNO2,
			airquality.PollutantSO2,
			airquality.PollutantCO,
			airquality.PollutantNO2Satellite,
		},
		SourceStatuses: []airquality.Status{
			airquality.StatusOK,
			airquality.StatusNoData,
			airquality.StatusUnavailable,
		},
		DispersionImpacts: []airquality.DispersionImpact{
			airquality.DispersionGood,
			airquality.DispersionModerate,
			airquality.DispersionPoor,
			airquality.DispersionStagnant,
			airquality.DispersionCleanse,
		},
		DataQuality:    []string{airquality.DataQualityHigh, airquality.DataQualityMedium},
		Confidence:     []string{airquality.ConfidenceHigh, airquality.ConfidenceMedium, airquality.ConfidenceLow},
		PrimarySources: []string{airquality.PrimaryAlternateGround, airquality.PrimaryGroundSensors, airquality.PrimaryFallbackModel},
	})
}
