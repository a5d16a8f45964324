package quiz

import (
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// quizSchema is the structural contract model output must satisfy before
// the per-format checks run.
const quizSchema = `{
  "type": "object",
  "required": ["questions"],
  "properties": {
    "questions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["question", "correctAnswer", "explanation"],
        "properties": {
          "question": {"type": "string", "minLength": 1},
          "options": {
            "type": "array",
            "items": {"type": "string"}
          },
          "correctAnswer": {"type": "string", "minLength": 1},
          "explanation": {"type": "string"}
        }
      }
    }
  }
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
)

func schema() *jsonschema.Schema {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(quizSchema))
		if err != nil {
			panic(err)
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("quiz.json", doc); err != nil {
			panic(err)
		}
		compiledSchema = c.MustCompile("quiz.json")
	})
	return compiledSchema
}
