package models

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{" admin ", RoleAdmin},
		{"client", RoleClient},
		{"", RoleClient},
		{"root", RoleClient},
		{"Admin", RoleClient},
	}
	for _, tt := range tests {
		if got := ParseRole(tt.in); got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRoleCan(t *testing.T) {
	if !RoleAdmin.Can(CapManage) || !RoleAdmin.Can(CapBrowse) {
		t.Error("admin should browse and manage")
	}
	if RoleClient.Can(CapManage) {
		t.Error("client must not manage")
	}
	if !RoleClient.Can(CapBrowse) {
		t.Error("client should browse")
	}
	if Role("ghost").Can(CapBrowse) {
		t.Error("unknown role must not browse")
	}
}

func TestKindForMIME(t *testing.T) {
	if KindForMIME("video/mp4") != KindVideo {
		t.Error("video/mp4 should be video")
	}
	if KindForMIME("image/png") != KindImage {
		t.Error("image/png should be image")
	}
}

func TestMediaFilterMatch(t *testing.T) {
	m := Media{LibraryID: 7, Topic: "Beach"}
	tests := []struct {
		name   string
		filter MediaFilter
		want   bool
	}{
		{"empty", MediaFilter{}, true},
		{"library", MediaFilter{LibraryID: 7}, true},
		{"other library", MediaFilter{LibraryID: 8}, false},
		{"topic", MediaFilter{Topic: "Beach"}, true},
		{"topic case sensitive", MediaFilter{Topic: "beach"}, false},
		{"both", MediaFilter{LibraryID: 7, Topic: "Beach"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Match(m); got != tt.want {
				t.Errorf("Match = %v, want %v", got, tt.want)
			}
		})
	}
}
