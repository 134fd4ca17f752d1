package daemon

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/quillblog/quill/internal/codec"
	"github.com/quillblog/quill/internal/settings"
)

type general struct {
	SiteName        string `json:"siteName"`
	SiteDescription string `json:"siteDescription"`
	Language        string `json:"language"`
	Timezone        string `json:"timezone"`
}

type appearance struct {
	Theme       string `json:"theme"`
	AccentColor string `json:"accentColor"`
	ShowAuthor  bool   `json:"showAuthor"`
}

type content struct {
	Posts struct {
		PerPage     int  `json:"perPage"`
		ShowExcerpt bool `json:"showExcerpt"`
	} `json:"posts"`
	Comments struct {
		Enabled    bool `json:"enabled"`
		Moderation bool `json:"moderation"`
	} `json:"comments"`
}

type seo struct {
	MetaTitle       string   `json:"metaTitle"`
	MetaDescription string   `json:"metaDescription"`
	Keywords        []string `json:"keywords"`
}

// defaults are the settings of a new blog, per group.
func defaults() []struct {
	group  string
	values any
} {
	var c content
	c.Posts.PerPage = 10
	c.Posts.ShowExcerpt = true
	c.Comments.Enabled = true
	c.Comments.Moderation = true

	return []struct {
		group  string
		values any
	}{
		{group: "general", values: general{SiteName: "My Blog", Language: "en", Timezone: "UTC"}},
		{group: "appearance", values: appearance{Theme: "light", AccentColor: "#3b82f6", ShowAuthor: true}},
		{group: "content", values: c},
		{group: "seo", values: seo{MetaTitle: "My Blog", Keywords: []string{}}},
	}
}

// defaultInputs flattens the defaults. Keys of the general, appearance and
// seo groups start with the group name; content keys do not.
func defaultInputs() ([]settings.Input, error) {
	var inputs []settings.Input

	for _, d := range defaults() {
		prefix := d.group + codec.Separator
		if d.group == "content" {
			prefix = ""
		}

		group, err := settings.GroupInputs(d.values, d.group, prefix)
		if err != nil {
			return nil, errors.Wrapf(err, "flatten %s defaults", d.group)
		}

		inputs = append(inputs, group...)
	}

	return inputs, nil
}

// seed writes the default settings through the batch path when the store is
// empty, so the defaults have a history.
func seed(ctx context.Context, svc *settings.Service) error {
	empty, err := svc.Empty(ctx)
	if err != nil {
		return errors.Wrap(err, "count settings")
	}

	if !empty {
		return nil
	}

	inputs, err := defaultInputs()
	if err != nil {
		return err
	}

	result, err := svc.Batch(ctx, inputs, settings.Meta{Description: "Seeded default settings"})
	if err != nil {
		return errors.Wrap(err, "seed default settings")
	}

	log.Info().Int("settings", result.Applied).Strs("groups", result.Groups).Msg("default settings seeded")

	return nil
}
