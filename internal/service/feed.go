package service

import (
	"context"
	"log/slog"
	"sort"

	"agora/internal/middleware"
	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFeedMinimum     = 10
	defaultFeedConcurrency = 4
)

// FeedConfig tunes discovery padding.
type FeedConfig struct {
	MinimumSize int
	Concurrency int
	// Discovery reports whether sparse feeds are padded for userID.
	// Nil enables discovery for everyone.
	Discovery func(userID uint) bool
}

// FeedComposer builds a user's personalized feed: posts from their
// communities, padded with one recent post from each of the newest public
// communities they have not joined when the feed is sparse.
type FeedComposer struct {
	ranking     *RankingEngine
	communities repository.CommunityRepository
	posts       repository.PostRepository
	ledger      *VoteLedger
	cfg         FeedConfig
}

func NewFeedComposer(
	ranking *RankingEngine,
	communities repository.CommunityRepository,
	posts repository.PostRepository,
	ledger *VoteLedger,
	cfg FeedConfig,
) *FeedComposer {
	if cfg.MinimumSize <= 0 {
		cfg.MinimumSize = defaultFeedMinimum
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultFeedConcurrency
	}
	return &FeedComposer{
		ranking:     ranking,
		communities: communities,
		posts:       posts,
		ledger:      ledger,
		cfg:         cfg,
	}
}

// Feed returns userID's feed page. Discovery posts follow the primary posts
// and are counted in Page.Discovered.
func (f *FeedComposer) Feed(ctx context.Context, userID uint, opts FilterOptions) (page *Page[*models.Post], err error) {
	if userID == 0 {
		return nil, models.NewUnauthorizedError("Authentication required")
	}
	ctx, span := observability.StartSpan(ctx, "feed", "compose", attribute.Int64("feed.user_id", int64(userID)))
	defer func() { observability.EndSpan(span, err) }()

	memberOf, err := f.communities.MemberCommunityIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	page, err = f.ranking.Rank(ctx, userID, ForCommunities(memberOf), opts)
	if err != nil {
		return nil, err
	}

	missing := f.cfg.MinimumSize - len(page.Items)
	if missing <= 0 || (f.cfg.Discovery != nil && !f.cfg.Discovery(userID)) {
		return page, nil
	}

	supplement, err := f.discover(ctx, userID, memberOf, page.Items, missing)
	if err != nil {
		return nil, err
	}
	if len(supplement) == 0 {
		return page, nil
	}
	if page.Options.SortBy == SortByTop {
		sort.SliceStable(supplement, func(i, j int) bool {
			return supplement[i].Score > supplement[j].Score
		})
	}

	page.Items = append(page.Items, supplement...)
	page.Discovered = len(supplement)
	observability.FeedDiscoveryPosts.Add(float64(len(supplement)))
	middleware.Logger.DebugContext(ctx, "feed padded with discovery posts",
		slog.Int("primary", len(page.Items)-len(supplement)),
		slog.Int("discovered", len(supplement)),
	)
	return page, nil
}

// discover samples up to limit public communities outside memberOf for their
// newest post, keeping community order.
func (f *FeedComposer) discover(ctx context.Context, userID uint, memberOf []uint, primary []*models.Post, limit int) ([]*models.Post, error) {
	candidates, err := f.communities.NewestPublic(ctx, memberOf, limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	exclude := make([]uint, len(primary))
	for i, p := range primary {
		exclude[i] = p.ID
	}

	found := make([]*models.Post, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Concurrency)
	for i, community := range candidates {
		g.Go(func() error {
			posts, err := f.posts.Query(gctx, repository.PostQuery{
				CommunityIDs: []uint{community.ID},
				ExcludeIDs:   exclude,
				Sort:         repository.SortNew,
				Limit:        1,
				ViewerID:     userID,
			})
			if err != nil {
				return err
			}
			if len(posts) > 0 {
				found[i] = posts[0]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	supplement := make([]*models.Post, 0, len(found))
	for _, p := range found {
		if p != nil {
			supplement = append(supplement, p)
		}
	}
	if len(supplement) > 0 {
		if err := f.ledger.AnnotatePosts(ctx, userID, supplement...); err != nil {
			return nil, err
		}
	}
	return supplement, nil
}
