package models

import (
	"fmt"
	"time"
)

// TargetKind names the kind of content a vote applies to.
type TargetKind string

const (
	TargetPost    TargetKind = "post"
	TargetComment TargetKind = "comment"
	TargetReply   TargetKind = "reply"
)

// Valid reports whether k is a known target kind.
func (k TargetKind) Valid() bool {
	switch k {
	case TargetPost, TargetComment, TargetReply:
		return true
	}
	return false
}

// ParseTargetKind converts a path segment such as "posts" or "reply" to a TargetKind.
func ParseTargetKind(s string) (TargetKind, error) {
	switch s {
	case "post", "posts":
		return TargetPost, nil
	case "comment", "comments":
		return TargetComment, nil
	case "reply", "replies":
		return TargetReply, nil
	}
	return "", NewValidationError(fmt.Sprintf("unknown vote target %q", s))
}

// VoteTarget identifies exactly one votable item.
type VoteTarget struct {
	Kind TargetKind `json:"kind"`
	ID   uint       `json:"id"`
}

func PostTarget(id uint) VoteTarget    { return VoteTarget{Kind: TargetPost, ID: id} }
func CommentTarget(id uint) VoteTarget { return VoteTarget{Kind: TargetComment, ID: id} }
func ReplyTarget(id uint) VoteTarget   { return VoteTarget{Kind: TargetReply, ID: id} }

// Validate rejects unknown kinds and zero ids.
func (t VoteTarget) Validate() error {
	if !t.Kind.Valid() {
		return NewValidationError(fmt.Sprintf("unknown vote target %q", t.Kind))
	}
	if t.ID == 0 {
		return NewValidationError(fmt.Sprintf("%s id is required", t.Kind))
	}
	return nil
}

func (t VoteTarget) String() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}

// Vote is one user's up or down vote on one target. The store holds at most
// one row per (voter, target).
type Vote struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	VoterID    uint       `gorm:"not null;uniqueIndex:idx_votes_voter_target,priority:1" json:"voter_id"`
	TargetKind TargetKind `gorm:"type:varchar(16);not null;uniqueIndex:idx_votes_voter_target,priority:2;index:idx_votes_target,priority:1" json:"target_kind"`
	TargetID   uint       `gorm:"not null;uniqueIndex:idx_votes_voter_target,priority:3;index:idx_votes_target,priority:2" json:"target_id"`
	IsUpvote   bool       `gorm:"not null" json:"is_upvote"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Target returns the vote's target as a tagged value.
func (v *Vote) Target() VoteTarget {
	return VoteTarget{Kind: v.TargetKind, ID: v.TargetID}
}

// Score returns upvotes minus downvotes.
func Score(votes []Vote) int {
	score := 0
	for _, v := range votes {
		if v.IsUpvote {
			score++
		} else {
			score--
		}
	}
	return score
}

// ContentRef carries the resolved facts about a votable item that access
// and ownership checks need.
type ContentRef struct {
	Target           VoteTarget
	AuthorID         uint
	PostID           uint
	CommunityID      uint
	CommunityPrivate bool
	CommunityOwnerID uint
}
