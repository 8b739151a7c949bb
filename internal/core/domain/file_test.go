package domain

import (
	"testing"
	"time"
)

func TestClassifyFile(t *testing.T) {
	tests := []struct {
		ref  string
		want FileKind
	}{
		{"files/abc_report.pdf", FileKindDocument},
		{"files/abc_archive.zip", FileKindDocument},
		{"files/abc", FileKindDocument},
		{"files/abc.jpg", FileKindPhoto},
		{"files/abc_Holiday.JPEG", FileKindPhoto},
		{"files/abc_shot.png", FileKindPhoto},
		{"files/abc.mp4", FileKindVideo},
		{"files/abc_clip.MOV", FileKindVideo},
		{"files/abc_loop.gif", FileKindAnimation},
		{"files/abc_song.mp3", FileKindAudio},
		{"files/abc_drawing.svg", FileKindDocument},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			if got := ClassifyFile(tt.ref); got != tt.want {
				t.Errorf("ClassifyFile(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestStoredFileName(t *testing.T) {
	tests := []struct {
		name     string
		uniqueID string
		original string
		kind     FileKind
		want     string
	}{
		{"document with name", "AgADBQ", "report.pdf", FileKindDocument, "AgADBQ_report.pdf"},
		{"photo without name", "AgADBQ", "", FileKindPhoto, "AgADBQ.jpg"},
		{"video without name", "AgADBQ", "", FileKindVideo, "AgADBQ.mp4"},
		{"path traversal", "AgADBQ", "../../etc/passwd", FileKindDocument, "AgADBQ_passwd"},
		{"windows path", "AgADBQ", `C:\docs\a.txt`, FileKindDocument, "AgADBQ_a.txt"},
		{"dot dot", "AgADBQ", "..", FileKindDocument, "AgADBQ.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StoredFileName(tt.uniqueID, tt.original, tt.kind); got != tt.want {
				t.Errorf("StoredFileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecision(t *testing.T) {
	rec := NewTokenRecord("Z1", time.Time{})
	rec.Files = []string{"a", "b"}

	tests := []struct {
		name      string
		decision  Decision
		granted   bool
		files     int
		wantError error
	}{
		{"missing", Decision{Kind: RejectedMissing}, false, 0, ErrTokenMissing},
		{"invalid", Decision{Kind: RejectedInvalid}, false, 0, ErrTokenInvalid},
		{"expired", Decision{Kind: RejectedExpired, Record: rec}, false, 0, ErrTokenExpired},
		{"granted", Decision{Kind: GrantedToken, Record: rec}, true, 2, nil},
		{"premium bare", Decision{Kind: GrantedUnlimited}, true, 0, nil},
		{"premium with token", Decision{Kind: GrantedUnlimited, Record: rec}, true, 2, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.decision.Granted(); got != tt.granted {
				t.Errorf("Granted() = %v, want %v", got, tt.granted)
			}
			if got := len(tt.decision.Files()); got != tt.files {
				t.Errorf("len(Files()) = %d, want %d", got, tt.files)
			}
			if got := tt.decision.Err(); got != tt.wantError {
				t.Errorf("Err() = %v, want %v", got, tt.wantError)
			}
		})
	}
}
