// Package provider wraps the hosted text models used to translate prompts.
//
// Each provider turns an LLMRequest (system prompt plus user turns) into a
// single text completion. Providers are safe for concurrent use.
package provider
