package pathtemplate

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name     string
		template string
		library  string
		model    string
		metadata map[string]string
		want     string
		wantErr  error
	}{
		{
			name:     "Basic substitution",
			template: "{library}/{metadata.artist}/{model}",
			library:  "Main",
			model:    "Dragon Bust",
			metadata: map[string]string{"artist": "Jane"},
			want:     filepath.Join(root, "Main", "Jane", "Dragon_Bust"),
		},
		{
			name:     "Missing metadata substitutes sentinel",
			template: "{library}/{metadata.artist}/{model}",
			library:  "Main",
			model:    "Gnome",
			metadata: nil,
			want:     filepath.Join(root, "Main", "_unknown", "Gnome"),
		},
		{
			name:     "Traversal in metadata is sanitized inert",
			template: "{library}/{metadata.artist}/{model}",
			library:  "Main",
			model:    "Gnome",
			metadata: map[string]string{"artist": "../../etc"},
			want:     filepath.Join(root, "Main", ".._.._etc", "Gnome"),
		},
		{
			name:     "Traversal in model name is sanitized inert",
			template: "{library}/{model}",
			library:  "Main",
			model:    "../../../passwd",
			want:     filepath.Join(root, "Main", ".._.._.._passwd"),
		},
		{
			name:     "Literal segment survives",
			template: "{library}/models/{model}",
			library:  "Main",
			model:    "Gnome",
			want:     filepath.Join(root, "Main", "models", "Gnome"),
		},
		{
			name:     "Invalid template surfaces parse error",
			template: "{library}/{bogus}/{model}",
			library:  "Main",
			model:    "Gnome",
			wantErr:  ErrInvalidTemplate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.template, root, tt.library, tt.model, tt.metadata)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSanitizeValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Dragon Bust", "Dragon_Bust"},
		{"Jane", "Jane"},
		{"../../etc", ".._.._etc"},
		{"a/b\\c", "a_b_c"},
		{"semi:colon|pipe", "semi_colon_pipe"},
		{"  spaced  out  ", "spaced_out"},
		{"", "_unknown"},
		{"   ", "_unknown"},
		{"...", "..."},
		{"..", "_unknown"},
		{".", "_unknown"},
		{"normal-name_1.2", "normal-name_1.2"},
		{"quote\"and<angle>", "quote_and_angle"},
	}

	for _, tt := range tests {
		if got := SanitizeValue(tt.in); got != tt.want {
			t.Errorf("SanitizeValue(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
