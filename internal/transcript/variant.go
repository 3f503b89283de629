package transcript

import (
	"strings"

	"github.com/tidwall/gjson"
)

// variant is the closed set of entry shapes found in agent transcripts.
type variant int

const (
	variantUnknown variant = iota
	// {"type":"user|assistant","message":{"role":...,"content":string|[blocks]}}
	variantTypeTagged
	// {"role":"user|assistant","content":string|[blocks]}
	variantRoleTagged
	// {"type":"human","message":string|{"content":...}}
	variantHuman
)

func detect(entry gjson.Result) variant {
	switch entry.Get("type").String() {
	case "user", "assistant":
		return variantTypeTagged
	case "human":
		return variantHuman
	}
	switch entry.Get("role").String() {
	case "user", "assistant":
		return variantRoleTagged
	}
	return variantUnknown
}

func normalize(entry gjson.Result) (Message, bool) {
	switch detect(entry) {
	case variantTypeTagged:
		return normalizeTypeTagged(entry), true
	case variantRoleTagged:
		return normalizeRoleTagged(entry), true
	case variantHuman:
		return normalizeHuman(entry), true
	default:
		return Message{}, false
	}
}

func normalizeTypeTagged(entry gjson.Result) Message {
	msg := Message{Role: Role(entry.Get("type").String())}

	inner := entry.Get("message")
	if inner.Type == gjson.String {
		msg.Text = inner.String()
		return msg
	}
	msg.Text, msg.ToolUses = contentText(inner.Get("content"))
	return msg
}

func normalizeRoleTagged(entry gjson.Result) Message {
	msg := Message{Role: Role(entry.Get("role").String())}
	msg.Text, msg.ToolUses = contentText(entry.Get("content"))
	return msg
}

func normalizeHuman(entry gjson.Result) Message {
	msg := Message{Role: RoleUser}

	inner := entry.Get("message")
	if inner.IsObject() {
		inner = inner.Get("content")
	}
	msg.Text, msg.ToolUses = contentText(inner)
	return msg
}

// contentText flattens a content value: a plain string, a single block, or a
// list of blocks. Text blocks and bare strings are joined with newlines.
func contentText(content gjson.Result) (string, []string) {
	switch {
	case !content.Exists():
		return "", nil
	case content.Type == gjson.String:
		return content.String(), nil
	case content.IsArray():
		var parts, uses []string
		for _, block := range content.Array() {
			switch {
			case block.Type == gjson.String:
				parts = append(parts, block.String())
			case block.Get("type").String() == "text":
				parts = append(parts, block.Get("text").String())
			case block.Get("type").String() == "tool_use":
				if input := block.Get("input"); input.Exists() {
					uses = append(uses, input.Raw)
				}
			}
		}
		return strings.Join(parts, "\n"), uses
	case content.IsObject():
		if content.Get("type").String() == "text" {
			return content.Get("text").String(), nil
		}
		return content.Raw, nil
	default:
		return content.String(), nil
	}
}
