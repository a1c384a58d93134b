// Package gemini implements a summarization backend on Google's Gemini API
// through the google.golang.org/genai client.
package gemini
