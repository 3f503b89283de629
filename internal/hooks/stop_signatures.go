package hooks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cognaterra/better-drinking-bird/internal/config"
)

// signatureFamily groups evasion signatures under one Stop toggle.
type signatureFamily struct {
	label      string
	signatures []signature
	enabled    func(config.StopConfig) bool
}

type signature struct {
	source string
	re     *regexp.Regexp
	// accept refines a regex match; nil accepts every match.
	accept func(match []string) bool
}

func newSignature(source string) signature {
	return signature{source: source, re: regexp.MustCompile(`(?i)` + source)}
}

func newCheckedSignature(source string, accept func([]string) bool) signature {
	s := newSignature(source)
	s.accept = accept
	return s
}

var signatureFamilies = []signatureFamily{
	{
		label:   "Permission-seeking",
		enabled: func(c config.StopConfig) bool { return c.BlockPermissionSeeking },
		signatures: []signature{
			newSignature(`ready\s+for\s+(your\s+)?feedback`),
			newSignature(`should\s+I\s+proceed`),
			newSignature(`would\s+you\s+like\s+(me\s+to|to)`),
			newSignature(`if\s+you\s+(want|would\s+like)`),
			newSignature(`let\s+me\s+know\s+(if|when|what)`),
			newSignature(`awaiting\s+(your|further)`),
			newSignature(`waiting\s+for\s+(your|further)`),
			newSignature(`please\s+(confirm|let\s+me\s+know|advise)`),
			newSignature(`do\s+you\s+want\s+me\s+to`),
			newSignature(`shall\s+I\s+(proceed|continue|go\s+ahead)`),
			newSignature(`I\s+can\s+(also|help|assist).*if\s+you`),
			newSignature(`what\s+would\s+you\s+like\s+me\s+to`),
			newSignature(`I('m|\s+am)\s+ready\s+(to|for)`),
			newSignature(`next\s+steps.*\?\s*$`),
		},
	},
	{
		label:   "Plan deviation",
		enabled: func(c config.StopConfig) bool { return c.BlockPlanDeviation },
		signatures: []signature{
			newSignature(`time\s+to\s+(execute|implement|build|start|begin)`),
			newSignature(`(foundation|groundwork|setup)\s+is\s+(solid|complete|ready|done)`),
			newSignature(`ready\s+to\s+(execute|implement|build|start|begin)`),
			newSignature(`now\s+(you\s+can|we\s+can)\s+(execute|implement|build)`),
			newSignature(`(plan|design|architecture)\s+is\s+(complete|ready|solid|done)\.?\s*$`),
			newSignature(`(I've|I\s+have)\s+made\s+(good\s+)?progress`),
			newSignature(`let\s+me\s+save\s+this\s+work`),
			newSignature(`summary\s+(coming|follows)`),
			newSignature(`due\s+to\s+(the\s+)?complexity`),
			newSignature(`session\s+\d+\s+(summary|recap)`),
			newSignature(`(future|next|another|separate|follow-up)\s+session`),
			newSignature(`(defer|postpone)(red|ring|d|ing)?\s+(this|that|these|the|it)\b`),
			newSignature(`left\s+(as\s+)?(a\s+)?TODO`),
			newSignature(`simpler\s+approach`),
		},
	},
	{
		label:   "Quality shortcut",
		enabled: func(c config.StopConfig) bool { return c.BlockQualityShortcuts },
		signatures: []signature{
			newSignature(`\b\d{1,2}(\.\d+)?\s*%\s+(complete|completed|done|finished|implemented|passing)`),
			newCheckedSignature(`\b(\d+)\s*/\s*(\d+)\s+(tests?\s+)?(pass|passing|passed)`, partialFraction),
			newSignature(`\b[1-9]\d*\s+(tests?\s+)?(failed|failing|failures?)\b`),
			newSignature(`tests?\s+(are\s+)?still\s+failing`),
			newSignature(`build\s+(is\s+)?(still\s+)?failing`),
			newSignature(`skip(ping|ped)?\s+(the\s+)?(failing\s+)?tests?`),
			newSignature(`good\s+enough`),
		},
	},
}

// partialFraction accepts "N/M passing" only when N < M.
func partialFraction(match []string) bool {
	passed, err := strconv.Atoi(match[1])
	if err != nil {
		return false
	}
	total, err := strconv.Atoi(match[2])
	if err != nil {
		return false
	}
	return passed < total
}

// matchSignature returns the description of the first enabled signature
// found in text, or "" when text is clean.
func matchSignature(cfg config.StopConfig, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	for _, family := range signatureFamilies {
		if !family.enabled(cfg) {
			continue
		}
		for _, sig := range family.signatures {
			if sig.matches(text) {
				return fmt.Sprintf("%s detected: '%s'", family.label, sig.source)
			}
		}
	}
	return ""
}

func (s signature) matches(text string) bool {
	if s.accept == nil {
		return s.re.MatchString(text)
	}
	for _, match := range s.re.FindAllStringSubmatch(text, -1) {
		if s.accept(match) {
			return true
		}
	}
	return false
}
