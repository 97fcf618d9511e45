package render

import (
	"context"
	"fmt"

	"github.com/a-h/templ"
)

// Actor is a display identity for a revision author
type Actor struct {
	ID        string `json:"id" toml:"id"`
	Name      string `json:"name" toml:"name"`
	AvatarURL string `json:"avatar_url,omitempty" toml:"avatar_url"`
}

// ActorDirectory resolves actor IDs to display identities
type ActorDirectory interface {
	Lookup(ctx context.Context, id string) (Actor, bool)
}

// StaticDirectory is an in-memory ActorDirectory
type StaticDirectory map[string]Actor

var _ ActorDirectory = StaticDirectory(nil)

// Lookup returns the actor registered under id
func (d StaticDirectory) Lookup(_ context.Context, id string) (Actor, bool) {
	a, ok := d[id]
	return a, ok
}

func (r *Renderer) actor(ctx context.Context, id string) Actor {
	if a, ok := r.actors.Lookup(ctx, id); ok {
		if a.Name == "" {
			a.Name = id
		}
		return a
	}
	if id == "" {
		return Actor{Name: "Unknown"}
	}
	return Actor{ID: id, Name: id}
}

func avatarHTML(a Actor) string {
	if a.AvatarURL == "" {
		return ""
	}
	return fmt.Sprintf(`<img class="avatar" src="%s" alt="" width="32" height="32">`, templ.EscapeString(a.AvatarURL))
}
