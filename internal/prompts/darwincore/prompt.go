// Package darwincore holds the built-in extraction prompt and the Darwin
// Core terms it asks the model for.
package darwincore

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

//go:embed system.tmpl
var systemPromptTmpl string

var systemTemplate = template.Must(template.New("system").Parse(systemPromptTmpl))

// Term is a Darwin Core term requested from the model.
type Term struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
}

// Terms lists the extracted terms in prompt order.
var Terms = []Term{
	{"scientificName", "Full scientific name, not containing identification qualifications."},
	{"catalogNumber", "Unique identifier for the record in the dataset or collection."},
	{"recordNumber", "Identifier given during recording, often linking field notes and Occurrence record."},
	{"recordedBy", "List of people, groups, or organizations responsible for recording the original Occurrence."},
	{"year", "Four-digit year of the Event."},
	{"month", "Integer for the month of the Event."},
	{"day", "Integer for the day of the Event, not populated unless month and year are filled in."},
	{"dateIdentified", "Date when the subject was determined to represent the Taxon."},
	{"identifiedBy", "Person, group, or organization assigning the Taxon to the subject."},
	{"verbatimIdentification", "Taxonomic identification as it appeared in the original record."},
	{"country", "Name of the country or major administrative unit for the Location."},
	{"countryCode", "Standard code for the country of the Location."},
	{"decimalLatitude", "Geographic latitude in decimal degrees of the Location's center."},
	{"decimalLongitude", "Geographic longitude in decimal degrees of the Location's center."},
	{"location", "A spatial region or named place."},
	{"minimumElevationInMeters", "The lower limit of the range of elevation in meters."},
	{"maximumElevationInMeters", "The upper limit of the range of elevation in meters."},
	{"verbatimElevation", "The original description of the elevation."},
	{"verbatimCoordinates", "The original coordinates. can be MGRS coordinates (f.eks.: UH 68,14)."},
}

var systemPrompt = render()

func render() string {
	var buf bytes.Buffer
	if err := systemTemplate.Execute(&buf, struct{ Terms []Term }{Terms: Terms}); err != nil {
		return systemPromptTmpl
	}
	return strings.TrimSpace(buf.String())
}

// SystemPrompt returns the herbarium label extraction prompt.
func SystemPrompt() string {
	return systemPrompt
}

// TermNames returns the term names in prompt order.
func TermNames() []string {
	names := make([]string, len(Terms))
	for i, t := range Terms {
		names[i] = t.Name
	}
	return names
}
