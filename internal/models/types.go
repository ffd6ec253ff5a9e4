package models

import (
	"strings"
	"time"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// Capability is something a role may be allowed to do.
type Capability int

const (
	// CapBrowse covers reading libraries, media, topics and downloads.
	CapBrowse Capability = iota
	// CapManage covers every mutation plus user administration.
	CapManage
)

// ParseRole coerces anything other than "admin" to RoleClient.
func ParseRole(s string) Role {
	if strings.TrimSpace(s) == string(RoleAdmin) {
		return RoleAdmin
	}
	return RoleClient
}

// Can reports whether the role grants c.
func (r Role) Can(c Capability) bool {
	switch c {
	case CapBrowse:
		return r == RoleAdmin || r == RoleClient
	case CapManage:
		return r == RoleAdmin
	}
	return false
}

// ProtectedUserID is the seeded administrator that can never be deleted.
const ProtectedUserID int64 = 1

// MediaKind classifies uploaded media.
type MediaKind string

const (
	KindImage MediaKind = "image"
	KindVideo MediaKind = "video"
)

// KindForMIME returns KindVideo for video/* types and KindImage otherwise.
func KindForMIME(mimeType string) MediaKind {
	if strings.HasPrefix(mimeType, "video/") {
		return KindVideo
	}
	return KindImage
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     Role   `json:"role"`
}

// SafeUser is the projection of a User that is allowed out of the API.
type SafeUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

func (u User) Safe() SafeUser {
	return SafeUser{ID: u.ID, Username: u.Username, Role: u.Role}
}

type Library struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Media struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Filename   string    `json:"filename"`
	Type       MediaKind `json:"type"`
	LibraryID  int64     `json:"libraryId"`
	Topic      string    `json:"topic"`
	UploadedAt time.Time `json:"uploadedAt"`
	Size       int64     `json:"size"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
}

// MediaItem is a Media record with its retrieval URL attached.
type MediaItem struct {
	Media
	URL string `json:"url"`
}

// MediaFilter narrows a media listing. Zero values mean "no filter".
type MediaFilter struct {
	LibraryID int64
	Topic     string
}

func (f MediaFilter) Match(m Media) bool {
	if f.LibraryID != 0 && m.LibraryID != f.LibraryID {
		return false
	}
	if f.Topic != "" && m.Topic != f.Topic {
		return false
	}
	return true
}
