package books

type CreateBookPayload struct {
	Title        string   `json:"title" mod:"trim" validate:"required,max=300"`
	Author       string   `json:"author" mod:"trim" validate:"required,max=200"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	ThumbnailURL *string  `json:"thumbnail_url,omitempty" validate:"omitempty,url,max=500"`
	Rating       *float64 `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}

type UpdateBookPayload struct {
	Title        *string  `json:"title,omitempty" mod:"trim" validate:"omitempty,min=1,max=300"`
	Author       *string  `json:"author,omitempty" mod:"trim" validate:"omitempty,min=1,max=200"`
	Description  *string  `json:"description,omitempty" validate:"omitempty,max=2000"`
	ThumbnailURL *string  `json:"thumbnail_url,omitempty" validate:"omitempty,url,max=500"`
	Rating       *float64 `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
}

type ListBooksQuery struct {
	Page        int     `query:"page" json:"page,omitempty" default:"1" validate:"min=1"`
	Limit       int     `query:"limit" json:"limit,omitempty" default:"10" validate:"min=1,max=100"`
	Search      *string `query:"search" json:"search,omitempty" validate:"omitempty,max=100"`
	IsAvailable *bool   `query:"is_available" json:"is_available,omitempty"`
}
