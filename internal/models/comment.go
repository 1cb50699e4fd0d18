package models

import "time"

// Comment is a hierarchical comment on a post. Root comments have no parent.
type Comment struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Content  string `gorm:"type:text;not null" json:"content"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Author   *User  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	PostID   uint   `gorm:"not null;index" json:"post_id"`
	ParentID *uint  `gorm:"index" json:"parent_id,omitempty"`
	// Score is not persisted; computed at query time
	Score int `gorm:"->;-:migration" json:"score"`
	// ReplyCount is not persisted; computed at query time
	ReplyCount int       `gorm:"->;-:migration" json:"reply_count"`
	ViewerVote *bool     `gorm:"-" json:"viewer_vote"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Reply is a flat, single-level response to a comment.
type Reply struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	AuthorID   uint      `gorm:"not null;index" json:"author_id"`
	Author     *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	CommentID  uint      `gorm:"not null;index" json:"comment_id"`
	Score      int       `gorm:"->;-:migration" json:"score"`
	ViewerVote *bool     `gorm:"-" json:"viewer_vote"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
