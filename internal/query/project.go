package query

import (
	"time"

	"github.com/sanketb-14/Streamline-sub000/internal/models"
	"github.com/sanketb-14/Streamline-sub000/internal/repository"
	"github.com/sanketb-14/Streamline-sub000/pkg/format"
)

// Project renders the requested fields of v. Views, duration and creation
// time also get display strings ("views_text", "views_compact",
// "duration_text", "created_text").
func Project(v *models.Video, fields []repository.Field) map[string]any {
	out := make(map[string]any, len(fields)+4)
	out[string(repository.FieldID)] = v.ID.String()

	for _, f := range fields {
		key := string(f)
		switch f {
		case repository.FieldID:
		case repository.FieldTitle:
			out[key] = v.Title
		case repository.FieldDescription:
			out[key] = v.Description
		case repository.FieldChannelID:
			out[key] = v.ChannelID.String()
		case repository.FieldVideoKey:
			out[key] = v.VideoKey
		case repository.FieldThumbnailKey:
			out[key] = v.ThumbnailKey
		case repository.FieldViews:
			out[key] = v.Views
			out["views_text"] = format.Views(v.Views)
			out["views_compact"] = format.Compact(v.Views)
		case repository.FieldLikeCount:
			out[key] = v.LikeCount
		case repository.FieldDislikeCount:
			out[key] = v.DislikeCount
		case repository.FieldDurationSeconds:
			out[key] = v.DurationSeconds
			out["duration_text"] = format.MediaDuration(time.Duration(v.DurationSeconds * float64(time.Second)))
		case repository.FieldSizeBytes:
			out[key] = v.SizeBytes
		case repository.FieldContentHash:
			out[key] = v.ContentHash
		case repository.FieldCreatedAt:
			out[key] = v.CreatedAt
			out["created_text"] = format.RelativeTime(v.CreatedAt, time.Now())
		case repository.FieldUpdatedAt:
			out[key] = v.UpdatedAt
		case repository.FieldTags:
			out[key] = v.TagNames()
		}
	}
	return out
}

// ProjectPage renders every item of p with its projection.
func ProjectPage(p *Page) []map[string]any {
	items := make([]map[string]any, len(p.Items))
	for i, v := range p.Items {
		items[i] = Project(v, p.Fields)
	}
	return items
}
