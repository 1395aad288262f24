// Package autoload registers every built-in LLM provider factory.
package autoload

import (
	_ "labagent/pkg/llm/gemini"
	_ "labagent/pkg/llm/ollama"
	_ "labagent/pkg/llm/openailm"
)
