// Package generate pulls prose from a model and runs it through a guard.
// Sources yield text fragments; Drive stops pulling as soon as the guard
// ends the scene and closes the source so the model stops generating.
package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/ppiankov/neurorouter"

	"github.com/ppiankov/sceneguard/internal/scene"
)

// ErrRateLimited is returned (wrapped) when the model provider throttles.
var ErrRateLimited = neurorouter.ErrRateLimited

// Source yields text fragments in generation order.
// Next returns io.EOF once the model has finished.
type Source interface {
	Next(ctx context.Context) (string, error)
	Close() error
}

// Prompt builds the system and user prompts that ask a model to write
// one scene within its constraints.
func Prompt(sc *scene.Scene, brief string) (system, user string) {
	var b strings.Builder
	b.WriteString("You are writing one scene of a longer story. Write only this scene, in continuous time.\n")
	b.WriteString("Do not skip ahead in time and do not summarize events; dramatize them.\n")
	if sc.TargetLength > 0 {
		fmt.Fprintf(&b, "Aim for about %d characters.\n", sc.TargetLength)
	}
	if len(sc.Characters) > 0 {
		fmt.Fprintf(&b, "Only these characters appear: %s.\n", strings.Join(sc.Characters, ", "))
	}
	if sc.EndCondition != "" {
		fmt.Fprintf(&b, "End the scene with this beat and stop: %s\n", sc.EndCondition)
	}
	system = b.String()

	user = brief
	if user == "" {
		user = "Write the scene"
		if sc.Title != "" {
			user += ": " + sc.Title
		}
		user += "."
	}
	return system, user
}
