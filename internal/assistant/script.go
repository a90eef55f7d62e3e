package assistant

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed script.yaml
var scriptYAML []byte

type keywordGroup struct {
	Action Action   `yaml:"action"`
	Words  []string `yaml:"words"`
}

type choice struct {
	Value string `yaml:"value"`
	Label string `yaml:"label"`
}

type messages struct {
	Greeting              string `yaml:"greeting"`
	Fallback              string `yaml:"fallback"`
	SkinTypePrompt        string `yaml:"skin_type_prompt"`
	SkinTypeRetry         string `yaml:"skin_type_retry"`
	ConcernPrompt         string `yaml:"concern_prompt"`
	ConcernRetry          string `yaml:"concern_retry"`
	ProfileRecall         string `yaml:"profile_recall"`
	Recommendation        string `yaml:"recommendation"`
	RecommendationDefault string `yaml:"recommendation_default"`
	TrackPrompt           string `yaml:"track_prompt"`
	TrackFound            string `yaml:"track_found"`
	TrackNotFound         string `yaml:"track_not_found"`
	TrackUnavailable      string `yaml:"track_unavailable"`
	ReturnPolicy          string `yaml:"return_policy"`
	AddedToBag            string `yaml:"added_to_bag"`
	AddFailed             string `yaml:"add_failed"`
}

// Script is the assistant's copy and keyword vocabulary.
type Script struct {
	Keywords     []keywordGroup `yaml:"keywords"`
	Messages     messages       `yaml:"messages"`
	SkinTypes    []choice       `yaml:"skin_types"`
	Concerns     []choice       `yaml:"concerns"`
	DefaultPicks []string       `yaml:"default_picks"`
}

// LoadScript parses the embedded script.
func LoadScript() (*Script, error) {
	return ParseScript(scriptYAML)
}

func ParseScript(raw []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse assistant script: %w", err)
	}
	for _, group := range s.Keywords {
		switch group.Action {
		case ActionTrack, ActionReturn, ActionQuiz, ActionMenu:
		default:
			return nil, fmt.Errorf("keyword group has unsupported action %q", group.Action)
		}
	}
	if len(s.SkinTypes) == 0 || len(s.Concerns) == 0 {
		return nil, fmt.Errorf("assistant script needs skin types and concerns")
	}
	if len(s.DefaultPicks) == 0 {
		return nil, fmt.Errorf("assistant script needs default picks")
	}
	return &s, nil
}

// Classify maps free text to an action by keyword containment. ok is false
// when nothing matched.
func (s *Script) Classify(text string) (Action, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return "", false
	}
	for _, group := range s.Keywords {
		for _, word := range group.Words {
			if strings.Contains(normalized, strings.ToLower(word)) {
				return group.Action, true
			}
		}
	}
	return "", false
}

// match finds the choice whose value or label appears in text.
func match(choices []choice, text string) (choice, bool) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return choice{}, false
	}
	for _, c := range choices {
		if normalized == c.Value || strings.Contains(normalized, c.Value) || strings.EqualFold(normalized, c.Label) {
			return c, true
		}
	}
	return choice{}, false
}

func options(choices []choice) []Option {
	out := make([]Option, 0, len(choices))
	for _, c := range choices {
		out = append(out, Option{Label: c.Label, Action: ActionAnswer, Value: c.Value})
	}
	return out
}

func (c choice) label() string {
	return strings.ToLower(c.Label)
}
