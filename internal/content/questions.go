package content

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed questions.json
var questionsJSON []byte

type Question struct {
	ID       int    `json:"id"`
	Category string `json:"category"`
	Text     string `json:"text"`
}

// Catalogue is the static list of interview questions served to the front end.
type Catalogue struct {
	Role      string     `json:"role"`
	Questions []Question `json:"questions"`
}

// LoadQuestions parses the embedded catalogue.
func LoadQuestions() (Catalogue, error) {
	return parseCatalogue(questionsJSON)
}

func parseCatalogue(b []byte) (Catalogue, error) {
	var c Catalogue
	if err := json.Unmarshal(b, &c); err != nil {
		return Catalogue{}, fmt.Errorf("content: parse questions: %w", err)
	}
	if len(c.Questions) == 0 {
		return Catalogue{}, fmt.Errorf("content: question catalogue is empty")
	}
	return c, nil
}
