package service

import (
	"context"
	"fmt"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultTreeDepth = 5
	maxTreeDepth     = 20
)

// CommentNode is a comment with its expanded children.
type CommentNode struct {
	*models.Comment
	Children []*CommentNode `json:"children"`
}

// ReplyThread is a comment followed by its flat list of replies.
type ReplyThread struct {
	Comment *models.Comment `json:"comment"`
	Replies []*models.Reply `json:"replies"`
}

// TreeConfig bounds comment tree expansion.
type TreeConfig struct {
	DefaultDepth int
	MaxDepth     int
}

// CommentTree expands comment hierarchies breadth-first, one query per level.
type CommentTree struct {
	comments repository.CommentRepository
	replies  repository.ReplyRepository
	posts    repository.PostRepository
	scope    *AccessScope
	ledger   *VoteLedger
	cfg      TreeConfig
}

func NewCommentTree(
	comments repository.CommentRepository,
	replies repository.ReplyRepository,
	posts repository.PostRepository,
	scope *AccessScope,
	ledger *VoteLedger,
	cfg TreeConfig,
) *CommentTree {
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = defaultTreeDepth
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = maxTreeDepth
	}
	return &CommentTree{
		comments: comments,
		replies:  replies,
		posts:    posts,
		scope:    scope,
		ledger:   ledger,
		cfg:      cfg,
	}
}

// ResolveDepth maps a requested depth to the one used: nil takes the
// default, larger values are clamped and negatives are rejected.
func (t *CommentTree) ResolveDepth(depth *int) (int, error) {
	if depth == nil {
		return t.cfg.DefaultDepth, nil
	}
	if *depth < 0 {
		return 0, models.NewValidationError("depth must not be negative")
	}
	if *depth > t.cfg.MaxDepth {
		return t.cfg.MaxDepth, nil
	}
	return *depth, nil
}

// Tree returns the root comments of postID, each expanded up to depth
// parent-to-child hops. depth 0 returns bare roots.
func (t *CommentTree) Tree(ctx context.Context, postID uint, depth *int, viewerID uint) (nodes []*CommentNode, err error) {
	ctx, span := observability.StartSpan(ctx, "comment_tree", "tree", attribute.Int64("post.id", int64(postID)))
	defer func() { observability.EndSpan(span, err) }()

	hops, err := t.ResolveDepth(depth)
	if err != nil {
		return nil, err
	}
	ref, err := t.scope.Resolve(ctx, models.PostTarget(postID))
	if err != nil {
		return nil, err
	}
	if err := t.scope.RequireRead(ctx, viewerID, ref); err != nil {
		return nil, err
	}

	roots, err := t.comments.Roots(ctx, postID)
	if err != nil {
		return nil, err
	}
	return t.expand(ctx, roots, hops, viewerID)
}

// Subtree returns commentID expanded up to depth hops.
func (t *CommentTree) Subtree(ctx context.Context, commentID uint, depth *int, viewerID uint) (node *CommentNode, err error) {
	ctx, span := observability.StartSpan(ctx, "comment_tree", "subtree", attribute.Int64("comment.id", int64(commentID)))
	defer func() { observability.EndSpan(span, err) }()

	hops, err := t.ResolveDepth(depth)
	if err != nil {
		return nil, err
	}
	ref, err := t.scope.Resolve(ctx, models.CommentTarget(commentID))
	if err != nil {
		return nil, err
	}
	if err := t.scope.RequireRead(ctx, viewerID, ref); err != nil {
		return nil, err
	}

	root, err := t.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, notFound(err, "Comment", commentID)
	}
	nodes, err := t.expand(ctx, []*models.Comment{root}, hops, viewerID)
	if err != nil {
		return nil, err
	}
	return nodes[0], nil
}

// Thread returns commentID with its replies in creation order.
func (t *CommentTree) Thread(ctx context.Context, commentID uint, viewerID uint) (*ReplyThread, error) {
	ref, err := t.scope.Resolve(ctx, models.CommentTarget(commentID))
	if err != nil {
		return nil, err
	}
	if err := t.scope.RequireRead(ctx, viewerID, ref); err != nil {
		return nil, err
	}

	comment, err := t.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, notFound(err, "Comment", commentID)
	}
	replies, err := t.replies.ListByComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := t.ledger.AnnotateComments(ctx, viewerID, comment); err != nil {
		return nil, err
	}
	if len(replies) > 0 {
		if err := t.ledger.AnnotateReplies(ctx, viewerID, replies...); err != nil {
			return nil, err
		}
	}
	return &ReplyThread{Comment: comment, Replies: replies}, nil
}

// arenaNode is a comment in the flat arena; children are arena indices.
type arenaNode struct {
	comment  *models.Comment
	children []int
}

// expand walks breadth-first from roots for up to hops levels, storing
// every comment in a flat arena, then materializes the nested nodes.
func (t *CommentTree) expand(ctx context.Context, roots []*models.Comment, hops int, viewerID uint) ([]*CommentNode, error) {
	arena := make([]arenaNode, 0, len(roots))
	index := make(map[uint]int, len(roots))
	frontier := make([]uint, 0, len(roots))
	for _, c := range roots {
		index[c.ID] = len(arena)
		arena = append(arena, arenaNode{comment: c})
		frontier = append(frontier, c.ID)
	}

	for level := 0; level < hops && len(frontier) > 0; level++ {
		children, err := t.comments.Children(ctx, frontier)
		if err != nil {
			return nil, err
		}
		next := make([]uint, 0, len(children))
		for _, c := range children {
			if c.ParentID == nil {
				continue
			}
			parent, ok := index[*c.ParentID]
			if !ok {
				return nil, models.NewInternalError(fmt.Errorf("comment %d has unknown parent %d", c.ID, *c.ParentID))
			}
			idx := len(arena)
			index[c.ID] = idx
			arena = append(arena, arenaNode{comment: c})
			arena[parent].children = append(arena[parent].children, idx)
			next = append(next, c.ID)
		}
		frontier = next
	}

	all := make([]*models.Comment, len(arena))
	for i := range arena {
		all[i] = arena[i].comment
	}
	if len(all) > 0 {
		if err := t.ledger.AnnotateComments(ctx, viewerID, all...); err != nil {
			return nil, err
		}
	}

	nodes := make([]*CommentNode, len(arena))
	for i := range arena {
		nodes[i] = &CommentNode{Comment: arena[i].comment, Children: []*CommentNode{}}
	}
	for i := range arena {
		for _, child := range arena[i].children {
			nodes[i].Children = append(nodes[i].Children, nodes[child])
		}
	}
	return nodes[:len(roots)], nil
}
