package id

import (
	gonanoid "github.com/matoous/go-nanoid/v2"
)

type Generator struct{}

func New() *Generator {
	return &Generator{}
}

func (g *Generator) generate(prefix string) string {
	id, err := gonanoid.New(21)
	if err != nil {
		return prefix + "_fallback"
	}
	return prefix + "_" + id
}

// GenerateMessageID returns the messageId for an outbound event header.
func (g *Generator) GenerateMessageID() string {
	return g.generate("em")
}

// GenerateDialogID returns the id of one microphone listen session.
func (g *Generator) GenerateDialogID() string {
	return g.generate("ed")
}
