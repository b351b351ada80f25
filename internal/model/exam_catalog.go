package model

import "strings"

// SectionConfig is the static layout of one section of an exam type.
type SectionConfig struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	TopicIDs    []string `json:"topic_ids"`
	Questions   int      `json:"questions"`
	Duration    int      `json:"duration"`
}

// ExamType is a TOLC variant that can be simulated.
type ExamType struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Sections    []SectionConfig `json:"sections"`
}

// TotalDuration is the planned length of the whole exam in minutes.
func (e ExamType) TotalDuration() int {
	total := 0
	for _, s := range e.Sections {
		total += s.Duration
	}
	return total
}

var englishSection = SectionConfig{
	ID:          "inglese",
	Name:        "Inglese",
	Description: "Conoscenza della lingua inglese",
	TopicIDs:    []string{"inglese"},
	Questions:   30,
	Duration:    15,
}

var examCatalog = []ExamType{
	{
		Code:        "TOLC-I",
		Name:        "TOLC-I",
		Description: "Ingegneria",
		Sections: []SectionConfig{
			{ID: "matematica", Name: "Matematica", Description: "Aritmetica, algebra, geometria, funzioni", TopicIDs: []string{"matematica"}, Questions: 20, Duration: 50},
			{ID: "logica", Name: "Logica", Description: "Ragionamento logico", TopicIDs: []string{"logica"}, Questions: 10, Duration: 20},
			{ID: "scienze", Name: "Scienze", Description: "Fisica e chimica di base", TopicIDs: []string{"fisica", "chimica"}, Questions: 10, Duration: 20},
			{ID: "comprensione-verbale", Name: "Comprensione verbale", Description: "Comprensione di testi", TopicIDs: []string{"comprensione-verbale"}, Questions: 10, Duration: 20},
			englishSection,
		},
	},
	{
		Code:        "TOLC-E",
		Name:        "TOLC-E",
		Description: "Economia e scienze statistiche",
		Sections: []SectionConfig{
			{ID: "logica", Name: "Logica", Description: "Ragionamento logico", TopicIDs: []string{"logica"}, Questions: 13, Duration: 30},
			{ID: "comprensione-verbale", Name: "Comprensione verbale", Description: "Comprensione di testi", TopicIDs: []string{"comprensione-verbale"}, Questions: 10, Duration: 30},
			{ID: "matematica", Name: "Matematica", Description: "Matematica di base", TopicIDs: []string{"matematica"}, Questions: 13, Duration: 30},
			englishSection,
		},
	},
	{
		Code:        "TOLC-F",
		Name:        "TOLC-F",
		Description: "Farmacia",
		Sections: []SectionConfig{
			{ID: "biologia", Name: "Biologia", Description: "Biologia di base", TopicIDs: []string{"biologia"}, Questions: 15, Duration: 20},
			{ID: "chimica", Name: "Chimica", Description: "Chimica di base", TopicIDs: []string{"chimica"}, Questions: 15, Duration: 20},
			{ID: "matematica", Name: "Matematica", Description: "Matematica di base", TopicIDs: []string{"matematica"}, Questions: 7, Duration: 12},
			{ID: "fisica", Name: "Fisica", Description: "Fisica di base", TopicIDs: []string{"fisica"}, Questions: 7, Duration: 12},
			{ID: "logica", Name: "Logica", Description: "Ragionamento logico", TopicIDs: []string{"logica"}, Questions: 6, Duration: 10},
			englishSection,
		},
	},
	{
		Code:        "TOLC-S",
		Name:        "TOLC-S",
		Description: "Scienze",
		Sections: []SectionConfig{
			{ID: "matematica", Name: "Matematica di base", Description: "Matematica di base", TopicIDs: []string{"matematica"}, Questions: 20, Duration: 50},
			{ID: "ragionamento", Name: "Ragionamento e problemi", Description: "Problem solving", TopicIDs: []string{"logica"}, Questions: 10, Duration: 20},
			{ID: "comprensione-verbale", Name: "Comprensione del testo", Description: "Comprensione di testi", TopicIDs: []string{"comprensione-verbale"}, Questions: 10, Duration: 20},
			{ID: "scienze", Name: "Scienze di base", Description: "Biologia, chimica, fisica, scienze della terra", TopicIDs: []string{"biologia", "chimica", "fisica", "scienze-terra"}, Questions: 10, Duration: 20},
			englishSection,
		},
	},
}

// ExamTypes returns a copy of the catalog.
func ExamTypes() []ExamType {
	out := make([]ExamType, len(examCatalog))
	for i, e := range examCatalog {
		out[i] = e.clone()
	}
	return out
}

// LookupExamType finds an exam type by code, case-insensitively.
func LookupExamType(code string) (ExamType, bool) {
	for _, e := range examCatalog {
		if strings.EqualFold(e.Code, strings.TrimSpace(code)) {
			return e.clone(), true
		}
	}
	return ExamType{}, false
}

func (e ExamType) clone() ExamType {
	sections := make([]SectionConfig, len(e.Sections))
	for i, s := range e.Sections {
		s.TopicIDs = append([]string(nil), s.TopicIDs...)
		sections[i] = s
	}
	e.Sections = sections
	return e
}
