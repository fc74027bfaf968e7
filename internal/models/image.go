// internal/models/image.go
package models

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TagSeparator delimits tags in Image.TagsText. Tags are trimmed on input so
// they never contain it.
const TagSeparator = "\n"

type Image struct {
	BaseModel
	Title          string                      `json:"title" gorm:"size:255;not null"`
	Description    string                      `json:"description" gorm:"type:text"`
	Category       string                      `json:"category" gorm:"size:100;not null;index"`
	Tags           datatypes.JSONSlice[string] `json:"tags"`
	TagsText       string                      `json:"-" gorm:"type:text"`
	Price          decimal.Decimal             `json:"price" gorm:"type:decimal(10,2);not null;default:0"`
	Orientation    Orientation                 `json:"orientation" gorm:"type:varchar(20);not null;index"`
	PhotographerID uuid.UUID                   `json:"photographer_id" gorm:"type:uuid;not null;index"`
	IsAdminUpload  bool                        `json:"is_admin_upload" gorm:"default:false"`

	// Asset references. The original is never serialized.
	OriginalKey  string `json:"-" gorm:"size:512;not null"`
	OriginalURL  string `json:"-" gorm:"size:1024;not null"`
	PreviewKey   string `json:"-" gorm:"size:512"`
	PreviewURL   string `json:"preview_url,omitempty" gorm:"size:1024"`
	ThumbnailKey string `json:"-" gorm:"size:512"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" gorm:"size:1024"`

	Downloads int64 `json:"downloads" gorm:"not null;default:0;index"`
	Likes     int64 `json:"likes" gorm:"not null;default:0"`

	// Relationships
	Photographer *User `json:"-" gorm:"foreignKey:PhotographerID"`
}

// BeforeSave keeps TagsText, the searchable form of Tags, in sync. Each tag
// is lowercased and wrapped in separators so both substring and whole-tag
// matches can be expressed with LIKE.
func (i *Image) BeforeSave(tx *gorm.DB) error {
	i.TagsText = JoinTags(i.Tags)
	return nil
}

func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	lowered := make([]string, len(tags))
	for n, tag := range tags {
		lowered[n] = strings.ToLower(tag)
	}
	return TagSeparator + strings.Join(lowered, TagSeparator) + TagSeparator
}

// PublicImage is the catalog representation of an image. FileURL always
// carries the watermarked preview.
type PublicImage struct {
	ID               uuid.UUID       `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	Category         string          `json:"category"`
	Tags             []string        `json:"tags"`
	Price            decimal.Decimal `json:"price"`
	Orientation      Orientation     `json:"orientation"`
	PhotographerID   uuid.UUID       `json:"photographer_id"`
	PhotographerName string          `json:"photographer_name,omitempty"`
	FileURL          string          `json:"file_url"`
	PreviewURL       string          `json:"preview_url,omitempty"`
	ThumbnailURL     string          `json:"thumbnail_url,omitempty"`
	Downloads        int64           `json:"downloads"`
	Likes            int64           `json:"likes"`
	UploadedAt       string          `json:"uploaded_at"`
}

// AdminImage adds the original asset reference for administrators.
type AdminImage struct {
	PublicImage
	OriginalURL   string `json:"original_url"`
	IsAdminUpload bool   `json:"is_admin_upload"`
}

func (i *Image) ToPublic() PublicImage {
	tags := []string(i.Tags)
	if tags == nil {
		tags = []string{}
	}

	public := PublicImage{
		ID:             i.ID,
		Title:          i.Title,
		Description:    i.Description,
		Category:       i.Category,
		Tags:           tags,
		Price:          i.Price,
		Orientation:    i.Orientation,
		PhotographerID: i.PhotographerID,
		FileURL:        i.PreviewURL,
		PreviewURL:     i.PreviewURL,
		ThumbnailURL:   i.ThumbnailURL,
		Downloads:      i.Downloads,
		Likes:          i.Likes,
		UploadedAt:     i.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if i.Photographer != nil {
		public.PhotographerName = i.Photographer.Name
	}
	return public
}

func (i *Image) ToAdmin() AdminImage {
	return AdminImage{
		PublicImage:   i.ToPublic(),
		OriginalURL:   i.OriginalURL,
		IsAdminUpload: i.IsAdminUpload,
	}
}

func PublicImages(images []Image) []PublicImage {
	result := make([]PublicImage, 0, len(images))
	for idx := range images {
		result = append(result, images[idx].ToPublic())
	}
	return result
}
