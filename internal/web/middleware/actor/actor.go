package actor

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/quillblog/quill/internal/db/models"
)

const (
	// HeaderID carries the actor id.
	HeaderID = "X-Actor-ID"
	// HeaderName carries the display name.
	HeaderName = "X-Actor-Name"
	// HeaderEmail carries the email address.
	HeaderEmail = "X-Actor-Email"

	localsKey = "CurrentActor"
)

// Middleware stores the actor described by the request headers in the context.
func Middleware(c fiber.Ctx) error {
	a := models.Actor{
		ID:    header(c, HeaderID, 64),     //nolint:mnd // column sizes of models.Actor
		Name:  header(c, HeaderName, 100),  //nolint:mnd
		Email: header(c, HeaderEmail, 255), //nolint:mnd
	}

	if !a.IsZero() {
		c.Locals(localsKey, a)
	}

	return c.Next()
}

// FromCtx returns the actor of the request, the zero Actor for anonymous requests.
func FromCtx(c fiber.Ctx) models.Actor {
	a, _ := c.Locals(localsKey).(models.Actor)

	return a
}

func header(c fiber.Ctx, name string, maxLen int) string {
	v := strings.TrimSpace(c.Get(name))
	if len(v) > maxLen {
		v = strings.ToValidUTF8(v[:maxLen], "")
	}

	return v
}
