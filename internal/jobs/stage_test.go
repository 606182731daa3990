package jobs

import "testing"

func TestParseStage(t *testing.T) {
	tests := []struct {
		in      string
		want    Stage
		wantErr bool
	}{
		{"pending", StagePending, false},
		{" Generating_Story ", StageGeneratingStory, false},
		{"generating_text", StageGeneratingStory, false},
		{"generating_audio", StageGeneratingSpeech, false},
		{"adding_music", StageGeneratingMusic, false},
		{"mixing_audio", StageMixingAudio, false},
		{"completed", StageCompleted, false},
		{"failed", StageFailed, false},
		{"uploading", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStage(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseStage(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseStage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStageOrdering(t *testing.T) {
	stages := AllStages()
	for i := 1; i < len(stages)-1; i++ {
		if stages[i].Rank() <= stages[i-1].Rank() {
			t.Fatalf("%s should rank above %s", stages[i], stages[i-1])
		}
	}
	for _, stage := range stages {
		wantTerminal := stage == StageCompleted || stage == StageFailed
		if stage.IsTerminal() != wantTerminal {
			t.Fatalf("%s IsTerminal = %v", stage, stage.IsTerminal())
		}
		if stage.Message() == "" {
			t.Fatalf("%s has no message", stage)
		}
	}
	if Stage("bogus").Rank() >= StagePending.Rank() {
		t.Fatal("unknown stage should rank below pending")
	}
}

func TestStageLabelAndMessage(t *testing.T) {
	if got := StageGeneratingStory.Label(); got != "Generating Story" {
		t.Fatalf("Label = %q", got)
	}
	if got := Stage("").Label(); got != "Unknown" {
		t.Fatalf("empty Label = %q", got)
	}
	if got := StageCompleted.Message(); got != "Your story is ready!" {
		t.Fatalf("Message = %q", got)
	}
	if got := Stage("other").Message(); got != "Processing..." {
		t.Fatalf("fallback Message = %q", got)
	}
}
