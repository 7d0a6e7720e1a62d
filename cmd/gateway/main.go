// Command gateway runs the multi-dialect LLM gateway: it serves OpenAI
// Chat Completions, OpenAI Responses, Claude Messages, and Gemini
// generateContent on one HTTP listener, translating each to whichever
// upstream dialect the resolved provider speaks.
package main

func main() {
	Execute()
}
