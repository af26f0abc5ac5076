package media

import "testing"

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{"image", KindImage, false},
		{"VIDEO", KindVideo, false},
		{" video ", KindVideo, false},
		{"audio", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseKind(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestKindForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        Kind
		wantOK      bool
	}{
		{"image/png", KindImage, true},
		{"image/jpeg; charset=binary", KindImage, true},
		{"IMAGE/WEBP", KindImage, true},
		{"video/mp4", KindVideo, true},
		{"video/webm;codecs=vp9", KindVideo, true},
		{"text/html; charset=utf-8", "", false},
		{"application/octet-stream", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			got, ok := KindForContentType(tt.contentType)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("KindForContentType(%q) = (%q, %v), want (%q, %v)",
					tt.contentType, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestGuessKind(t *testing.T) {
	tests := []struct {
		url    string
		want   Kind
		wantOK bool
	}{
		{"https://cdn.example.com/a/img.PNG", KindImage, true},
		{"https://cdn.example.com/clip.mp4?sig=abc", KindVideo, true},
		{"https://cdn.example.com/download", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := GuessKind(tt.url)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("GuessKind(%q) = (%q, %v), want (%q, %v)", tt.url, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestKindHelpers(t *testing.T) {
	if !KindImage.Valid() || !KindVideo.Valid() || Kind("gif").Valid() {
		t.Error("Valid() misclassified a kind")
	}
	if KindVideo.ContentTypePrefix() != "video/" {
		t.Errorf("ContentTypePrefix() = %q", KindVideo.ContentTypePrefix())
	}
}
