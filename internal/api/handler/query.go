package handler

import (
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/airfusion/airfusion/internal/api/models"
	"github.com/airfusion/airfusion/internal/api/response"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// coordinateQuery is the lat/lon pair accepted by the air quality endpoints.
type coordinateQuery struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

type forecastQuery struct {
	coordinateQuery
	Horizon int `json:"horizon" validate:"gte=0,lte=72"`
}

type recommendationsQuery struct {
	AQI *int `json:"aqi" validate:"required,gte=0,lte=500"`
}

// queryParser collects parse errors for query parameters so they can be
// reported together with validation errors.
type queryParser struct {
	r      *http.Request
	errors []models.FieldError
}

func newQueryParser(r *http.Request) *queryParser {
	return &queryParser{r: r}
}

func (p *queryParser) float(name string) *float64 {
	raw := p.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.errors = append(p.errors, models.FieldError{Field: name, Message: "must be a number", Code: "NUMBER"})
		return nil
	}
	return &v
}

func (p *queryParser) int(name string) *int {
	raw := p.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errors = append(p.errors, models.FieldError{Field: name, Message: "must be an integer", Code: "INTEGER"})
		return nil
	}
	return &v
}

// validate runs struct validation and writes a 400 on any parse or
// validation error. It reports whether the request may proceed.
func (p *queryParser) validate(w http.ResponseWriter, q interface{}) bool {
	if len(p.errors) > 0 {
		response.BadRequest(w, p.r, "invalid query parameters", p.errors)
		return false
	}
	if err := validate.Struct(q); err != nil {
		response.BadRequest(w, p.r, "invalid query parameters", models.FieldErrorsFrom(err))
		return false
	}
	return true
}

func (p *queryParser) coordinates() coordinateQuery {
	return coordinateQuery{Lat: p.float("lat"), Lon: p.float("lon")}
}
