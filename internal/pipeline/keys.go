package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// ProjectKey derives a stable key for the working directory: base name
// plus a short path hash, so same-named projects in different places
// do not share packets.
func ProjectKey(dir string) string {
	if dir == "" {
		dir, _ = os.Getwd()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Base(abs) + "-" + hex.EncodeToString(sum[:4])
}

// SessionContextKey buckets a session id into a coarse context key so
// packets prefetched for one session remain usable by its successors.
func SessionContextKey(sessionID string) string {
	if sessionID == "" {
		return "ctx-anon"
	}
	sum := sha256.Sum256([]byte(sessionID))
	return "ctx-" + hex.EncodeToString(sum[:4])
}

// IntentFor classifies a tool call into an intent family from the tool
// name and its input. Purely lexical: intent derivation is a cheap
// bucketing step, not an understanding step.
func IntentFor(toolName string, toolInput map[string]interface{}) string {
	command := strings.ToLower(inputString(toolInput, "command"))

	switch toolName {
	case "Bash":
		switch {
		case containsAny(command, "go test", "pytest", "npm test", "cargo test", "make test"):
			return "testing_validation"
		case containsAny(command, "git push", "deploy", "docker push", "kubectl apply"):
			return "deployment"
		case containsAny(command, "grep", "find ", "ls ", "cat "):
			return "exploration"
		default:
			return "debugging"
		}
	case "Edit", "Write", "NotebookEdit":
		return "code_authoring"
	case "Read", "Grep", "Glob":
		return "exploration"
	default:
		return ""
	}
}

func inputString(input map[string]interface{}, key string) string {
	if input == nil {
		return ""
	}
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
