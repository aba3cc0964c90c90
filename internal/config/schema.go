package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// configSchema describes the shape of tinies.json. Semantic rules that span
// fields live in Config.Validate.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "definitions": {
    "seconds": {"type": "integer", "minimum": 0},
    "nonEmpty": {"type": "string", "minLength": 1}
  },
  "properties": {
    "data_dir": {"type": "string"},
    "server": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "host": {"type": "string"},
        "port": {"type": "integer", "minimum": 1, "maximum": 65535},
        "shutdown_timeout": {"$ref": "#/definitions/seconds"}
      }
    },
    "logging": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "error"]},
        "file": {"type": "string"},
        "console": {"type": "boolean"},
        "pretty": {"type": "boolean"},
        "max_size": {"type": "integer", "minimum": 0},
        "max_age": {"type": "integer", "minimum": 0},
        "compress": {"type": "boolean"},
        "redaction": {"type": "boolean"},
        "audit": {"type": "boolean"}
      }
    },
    "counter": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "driver": {"enum": ["sqlite", "memory"]},
        "path": {"type": "string"},
        "name": {"$ref": "#/definitions/nonEmpty"}
      }
    },
    "scratch": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "dir": {"type": "string"},
        "max_age": {"type": "integer", "minimum": 1},
        "sweep_schedule": {"type": "string"}
      }
    },
    "content": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "dir": {"type": "string"},
        "watch": {"type": "boolean"}
      }
    },
    "session": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "cookie_name": {"$ref": "#/definitions/nonEmpty"},
        "idle_timeout": {"type": "integer", "minimum": 1},
        "expiry_schedule": {"type": "string"}
      }
    },
    "translator": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "provider": {"enum": ["google", "llm", "none"]},
        "endpoint": {"type": "string"},
        "target": {"$ref": "#/definitions/nonEmpty"},
        "timeout": {"$ref": "#/definitions/seconds"},
        "llm": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "provider": {"enum": ["openai", "anthropic", "gemini"]},
            "model": {"type": "string"},
            "api_key": {"type": "string"},
            "base_url": {"type": "string"},
            "max_tokens": {"type": "integer", "minimum": 1}
          }
        }
      }
    },
    "generation": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "backend": {"enum": ["gradio", "openai", "gemini"]},
        "timeout": {"$ref": "#/definitions/seconds"},
        "gradio": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "space": {"type": "string"},
            "base_url": {"type": "string"},
            "api_name": {"type": "string", "pattern": "^/"},
            "api_prefix": {"type": "string"},
            "token": {"type": "string"}
          }
        },
        "openai": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "api_key": {"type": "string"},
            "base_url": {"type": "string"},
            "model": {"type": "string"},
            "size": {"type": "string"}
          }
        },
        "gemini": {
          "type": "object",
          "additionalProperties": false,
          "properties": {
            "api_key": {"type": "string"},
            "base_url": {"type": "string"},
            "model": {"type": "string"}
          }
        }
      }
    },
    "materializer": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "jpeg_quality": {"type": "integer", "minimum": 1, "maximum": 100},
        "max_download_bytes": {"type": "integer", "minimum": 1},
        "block_private_networks": {"type": "boolean"},
        "timeout": {"$ref": "#/definitions/seconds"}
      }
    },
    "telegram": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "bot_token": {"type": "string"},
        "chat_id": {"type": "integer"},
        "caption_prefix": {"type": "string"},
        "api_endpoint": {"type": "string"},
        "fail_on_error": {"type": "boolean"},
        "timeout": {"$ref": "#/definitions/seconds"}
      }
    },
    "rate_limit": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "requests_per_minute": {"type": "integer", "minimum": 1}
      }
    },
    "tracing": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "enabled": {"type": "boolean"},
        "service_name": {"type": "string"},
        "sample_ratio": {"type": "number", "minimum": 0, "maximum": 1}
      }
    },
    "ui": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "examples": {"type": "array", "items": {"$ref": "#/definitions/nonEmpty"}}
      }
    }
  }
}`

// SchemaError lists every schema violation found in a config document
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("config schema validation failed: %s", strings.Join(e.Problems, "; "))
}

// ValidateSchema checks a raw JSON config document against the embedded schema
func ValidateSchema(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return fmt.Errorf("failed to validate config schema: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		problems = append(problems, desc.String())
	}
	return &SchemaError{Problems: problems}
}
