// Package huggingface implements a summarization backend on the Hugging Face
// Inference API, calling a hosted summarization model over HTTP.
package huggingface
