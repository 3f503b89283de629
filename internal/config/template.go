package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const template = `# Better Drinking Bird configuration
# Location: ~/.bdb/config.yaml
# Permissions must be 600 (chmod 600 ~/.bdb/config.yaml)

llm:
  provider: anthropic
  model: claude-haiku-4-5
  api_key: ""            # or set api_key_env, or ANTHROPIC_API_KEY in ~/.bdb/.env
  # api_key_env: ANTHROPIC_API_KEY
  # base_url: ""
  timeout: 30            # seconds
  max_tokens: 1024

hooks:
  # Stop: keeps the agent working until the task is done
  stop:
    enabled: true
    block_permission_seeking: true  # "Should I proceed?"
    block_plan_deviation: true      # "Let's continue in a future session"
    block_quality_shortcuts: true   # "3/5 tests passing, good enough"

  # PreToolUse: blocks dangerous commands
  pre_tool:
    enabled: true
    llm_fallback: block  # block | allow, used for ambiguous commands without an LLM
    categories:
      ci_bypass: true         # --no-verify, HUSKY=0
      destructive_git: true   # reset --hard, clean -f, push --force
      branch_switching: true  # checkout main (protects worktrees)
      interactive_git: true   # rebase -i, add -p
      dangerous_files: true   # rm -rf /
      git_history: true       # verbose git log, git blame
      credential_access: true # cat .env, .pem files
    # protected_paths:
    #   - "**/Makefile"

  # PostToolUseFailure: recovery hints
  tool_failure:
    enabled: true
    confidence_threshold: medium  # low | medium | high

  # PreCompact: preserves context across compaction
  pre_compact:
    enabled: true
    inject_git_context: true
    quote_context_files: true
    # context_patterns:
    #   - "docs/plans/*.md"
    #   - ".claude/plans/*.md"

logging:
  level: info  # debug | info | warn | error
  file: ~/.bdb/supervisor.log
  max_size_mb: 10
  max_backups: 3

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true

# blocklist:
#   - pattern: "DROP\\s+TABLE"
#     reason: "No dropping tables"
#     tools: ["Bash"]
`

// Template returns the commented starter configuration.
func Template() string {
	return template
}

// WriteTemplate writes the starter configuration to path with mode 0600.
// An existing file is only replaced when force is set.
func WriteTemplate(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(template), 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}
	return nil
}
