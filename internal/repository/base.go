// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"fmt"

	"agora/internal/database"
	"agora/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// any supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// scoreSelect is the upvotes-minus-downvotes subquery for rows of table with
// the given vote target kind.
func scoreSelect(kind models.TargetKind, table string) string {
	return fmt.Sprintf(
		"(SELECT COALESCE(SUM(CASE WHEN votes.is_upvote THEN 1 ELSE -1 END), 0) FROM votes "+
			"WHERE votes.target_kind = '%s' AND votes.target_id = %s.id) AS score",
		kind, table,
	)
}

// visibleCommunityIDs selects ids of communities viewerID may read: every
// public community plus those viewerID belongs to. Owners always hold a
// membership row, so they are covered by the second branch.
func visibleCommunityIDs(db *gorm.DB, viewerID uint) *gorm.DB {
	return db.Model(&models.Community{}).
		Select("communities.id").
		Where("communities.is_private = ? OR communities.id IN (?)", false,
			db.Model(&models.CommunityMembership{}).
				Select("community_memberships.community_id").
				Where("community_memberships.user_id = ?", viewerID),
		)
}

// deletePostsCascade removes the posts selected by postIDs (a subquery of
// post ids) together with their comments, replies and every related vote.
func deletePostsCascade(tx *gorm.DB, postIDs *gorm.DB) error {
	commentIDs := tx.Model(&models.Comment{}).Select("comments.id").Where("comments.post_id IN (?)", postIDs)
	replyIDs := tx.Model(&models.Reply{}).Select("replies.id").Where("replies.comment_id IN (?)", commentIDs)

	steps := []struct {
		what string
		run  func() error
	}{
		{"reply votes", func() error {
			return tx.Where("target_kind = ? AND target_id IN (?)", models.TargetReply, replyIDs).Delete(&models.Vote{}).Error
		}},
		{"comment votes", func() error {
			return tx.Where("target_kind = ? AND target_id IN (?)", models.TargetComment, commentIDs).Delete(&models.Vote{}).Error
		}},
		{"post votes", func() error {
			return tx.Where("target_kind = ? AND target_id IN (?)", models.TargetPost, postIDs).Delete(&models.Vote{}).Error
		}},
		{"replies", func() error {
			return tx.Where("comment_id IN (?)", commentIDs).Delete(&models.Reply{}).Error
		}},
		{"comments", func() error {
			return tx.Where("post_id IN (?)", postIDs).Delete(&models.Comment{}).Error
		}},
		{"posts", func() error {
			return tx.Where("id IN (?)", postIDs).Delete(&models.Post{}).Error
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			return fmt.Errorf("delete %s: %w", step.what, err)
		}
	}
	return nil
}

// deleteCommentsCascade removes the given comments with their replies and votes.
func deleteCommentsCascade(tx *gorm.DB, commentIDs []uint) error {
	if len(commentIDs) == 0 {
		return nil
	}
	replyIDs := tx.Model(&models.Reply{}).Select("replies.id").Where("replies.comment_id IN ?", commentIDs)

	if err := tx.Where("target_kind = ? AND target_id IN (?)", models.TargetReply, replyIDs).Delete(&models.Vote{}).Error; err != nil {
		return fmt.Errorf("delete reply votes: %w", err)
	}
	if err := tx.Where("target_kind = ? AND target_id IN ?", models.TargetComment, commentIDs).Delete(&models.Vote{}).Error; err != nil {
		return fmt.Errorf("delete comment votes: %w", err)
	}
	if err := tx.Where("comment_id IN ?", commentIDs).Delete(&models.Reply{}).Error; err != nil {
		return fmt.Errorf("delete replies: %w", err)
	}
	if err := tx.Where("id IN ?", commentIDs).Delete(&models.Comment{}).Error; err != nil {
		return fmt.Errorf("delete comments: %w", err)
	}
	return nil
}
