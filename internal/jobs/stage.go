package jobs

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage is one named step of the server-side generation pipeline.
type Stage string

const (
	StagePending          Stage = "pending"
	StageGeneratingStory  Stage = "generating_story"
	StageGeneratingSpeech Stage = "generating_speech"
	StageGeneratingMusic  Stage = "generating_music"
	StageMixingAudio      Stage = "mixing_audio"
	StageCompleted        Stage = "completed"
	StageFailed           Stage = "failed"
)

var stageRank = map[Stage]int{
	StagePending:          0,
	StageGeneratingStory:  1,
	StageGeneratingSpeech: 2,
	StageGeneratingMusic:  3,
	StageMixingAudio:      4,
	StageCompleted:        5,
	StageFailed:           5,
}

// legacyStages maps names used by older service deployments.
var legacyStages = map[string]Stage{
	"generating_text":  StageGeneratingStory,
	"generating_audio": StageGeneratingSpeech,
	"adding_music":     StageGeneratingMusic,
}

var stageMessages = map[Stage]string{
	StagePending:          "Your story is in the queue...",
	StageGeneratingStory:  "Creating your magical story...",
	StageGeneratingSpeech: "Bringing the story to life with narration...",
	StageGeneratingMusic:  "Adding enchanting background music...",
	StageMixingAudio:      "Mixing narration and music...",
	StageCompleted:        "Your story is ready!",
	StageFailed:           "Oh no! Something went wrong.",
}

// AllStages lists stages in pipeline order.
func AllStages() []Stage {
	return []Stage{
		StagePending,
		StageGeneratingStory,
		StageGeneratingSpeech,
		StageGeneratingMusic,
		StageMixingAudio,
		StageCompleted,
		StageFailed,
	}
}

// ParseStage converts a wire value into a Stage. Matching ignores case and
// surrounding whitespace.
func ParseStage(value string) (Stage, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if stage := Stage(normalized); stage.Valid() {
		return stage, nil
	}
	if stage, ok := legacyStages[normalized]; ok {
		return stage, nil
	}
	return "", fmt.Errorf("unknown stage %q", value)
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	_, ok := stageRank[s]
	return ok
}

// IsTerminal reports whether no further polling occurs after s.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Rank orders stages along the pipeline. Unknown stages rank below pending.
func (s Stage) Rank() int {
	if rank, ok := stageRank[s]; ok {
		return rank
	}
	return -1
}

// Message returns the user-facing progress message for s.
func (s Stage) Message() string {
	if msg, ok := stageMessages[s]; ok {
		return msg
	}
	return "Processing..."
}

// Label returns a title-cased display name, e.g. "Generating Story".
func (s Stage) Label() string {
	if s == "" {
		return "Unknown"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

func (s Stage) String() string {
	return string(s)
}
