package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"agora/internal/models"
	"agora/internal/observability"
	"agora/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

type SortBy string

const (
	SortByNew SortBy = "new"
	SortByTop SortBy = "top"
)

type Timespan string

const (
	TimespanDay     Timespan = "day"
	TimespanWeek    Timespan = "week"
	TimespanMonth   Timespan = "month"
	TimespanYear    Timespan = "year"
	TimespanAllTime Timespan = "all-time"
)

var timespanWindows = map[Timespan]time.Duration{
	TimespanDay:   24 * time.Hour,
	TimespanWeek:  7 * 24 * time.Hour,
	TimespanMonth: 30 * 24 * time.Hour,
	TimespanYear:  365 * 24 * time.Hour,
}

const (
	defaultTake = 10
	maxTake     = 100
)

// FilterOptions selects ordering, time window and page of a ranked listing.
type FilterOptions struct {
	SortBy   SortBy   `json:"sort_by"`
	Timespan Timespan `json:"timespan"`
	Skip     int      `json:"skip"`
	Take     int      `json:"take"`
}

// DefaultFilterOptions returns newest-first, all-time, first page of ten.
func DefaultFilterOptions() FilterOptions {
	return FilterOptions{SortBy: SortByNew, Timespan: TimespanAllTime, Skip: 0, Take: defaultTake}
}

// ParseFilterOptions parses raw query values. Empty values take defaults;
// enum values are case-insensitive.
func ParseFilterOptions(sortBy, timespan, skip, take string) (FilterOptions, error) {
	return parseFilterOptions(sortBy, timespan, skip, take, defaultTake)
}

func parseFilterOptions(sortBy, timespan, skip, take string, defTake int) (FilterOptions, error) {
	opts := DefaultFilterOptions()
	opts.Take = defTake

	if s := strings.ToLower(strings.TrimSpace(sortBy)); s != "" {
		switch SortBy(s) {
		case SortByNew, SortByTop:
			opts.SortBy = SortBy(s)
		default:
			return opts, models.NewValidationError(fmt.Sprintf("sortBy must be one of: new, top (got %q)", sortBy))
		}
	}

	if s := strings.ToLower(strings.TrimSpace(timespan)); s != "" {
		ts := Timespan(s)
		if _, ok := timespanWindows[ts]; !ok && ts != TimespanAllTime {
			return opts, models.NewValidationError(fmt.Sprintf("timespan must be one of: day, week, month, year, all-time (got %q)", timespan))
		}
		opts.Timespan = ts
	}

	var err error
	if opts.Skip, err = parseNonNegative("skip", skip, opts.Skip); err != nil {
		return opts, err
	}
	if opts.Take, err = parseNonNegative("take", take, opts.Take); err != nil {
		return opts, err
	}
	return opts, nil
}

func parseNonNegative(name, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, models.NewValidationError(fmt.Sprintf("%s must be an integer", name))
	}
	if n < 0 {
		return 0, models.NewValidationError(fmt.Sprintf("%s must not be negative", name))
	}
	return n, nil
}

// Validate rejects values ParseFilterOptions would reject.
func (o FilterOptions) Validate() error {
	_, err := ParseFilterOptions(string(o.SortBy), string(o.Timespan), strconv.Itoa(o.Skip), strconv.Itoa(o.Take))
	return err
}

// Cutoff returns the exclusive lower bound on creation time, or nil for all-time.
func (o FilterOptions) Cutoff(now time.Time) *time.Time {
	window, ok := timespanWindows[o.Timespan]
	if !ok {
		return nil
	}
	cutoff := now.Add(-window)
	return &cutoff
}

type descriptorKind int

const (
	byCommunity descriptorKind = iota + 1
	byCommunities
	byAuthor
	byAll
)

// Descriptor selects the source of a ranked listing.
type Descriptor struct {
	kind         descriptorKind
	communityIDs []uint
	authorID     uint
}

func ForCommunity(id uint) Descriptor {
	return Descriptor{kind: byCommunity, communityIDs: []uint{id}}
}

// ForCommunities ranks across ids; an empty set yields an empty page.
func ForCommunities(ids []uint) Descriptor {
	if ids == nil {
		ids = []uint{}
	}
	return Descriptor{kind: byCommunities, communityIDs: ids}
}

func ForAuthor(id uint) Descriptor {
	return Descriptor{kind: byAuthor, authorID: id}
}

// ForAll ranks every post the viewer may read.
func ForAll() Descriptor {
	return Descriptor{kind: byAll}
}

func (d Descriptor) String() string {
	switch d.kind {
	case byCommunity:
		return fmt.Sprintf("community:%d", d.communityIDs[0])
	case byCommunities:
		return fmt.Sprintf("communities:%v", d.communityIDs)
	case byAuthor:
		return fmt.Sprintf("author:%d", d.authorID)
	case byAll:
		return "all"
	}
	return "invalid"
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T           `json:"items"`
	Options    FilterOptions `json:"options"`
	Discovered int           `json:"discovered,omitempty"`
}

// RankingConfig bounds page sizes.
type RankingConfig struct {
	DefaultTake int
	MaxTake     int
}

// RankingEngine lists posts by descriptor with visibility filtering and
// new/top ordering.
type RankingEngine struct {
	posts       repository.PostRepository
	communities repository.CommunityRepository
	users       repository.UserRepository
	ledger      *VoteLedger
	cfg         RankingConfig
	now         func() time.Time
}

func NewRankingEngine(
	posts repository.PostRepository,
	communities repository.CommunityRepository,
	users repository.UserRepository,
	ledger *VoteLedger,
	cfg RankingConfig,
) *RankingEngine {
	if cfg.DefaultTake <= 0 {
		cfg.DefaultTake = defaultTake
	}
	if cfg.MaxTake <= 0 {
		cfg.MaxTake = maxTake
	}
	return &RankingEngine{
		posts:       posts,
		communities: communities,
		users:       users,
		ledger:      ledger,
		cfg:         cfg,
		now:         time.Now,
	}
}

// ParseOptions is ParseFilterOptions with the configured default page size.
func (e *RankingEngine) ParseOptions(sortBy, timespan, skip, take string) (FilterOptions, error) {
	return parseFilterOptions(sortBy, timespan, skip, take, e.cfg.DefaultTake)
}

// Rank returns the page of posts selected by d that viewerID may read.
func (e *RankingEngine) Rank(ctx context.Context, viewerID uint, d Descriptor, opts FilterOptions) (page *Page[*models.Post], err error) {
	ctx, span := observability.StartSpan(ctx, "ranking", "rank",
		attribute.String("rank.descriptor", d.String()),
		attribute.String("rank.sort", string(opts.SortBy)),
		attribute.String("rank.timespan", string(opts.Timespan)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Take > e.cfg.MaxTake {
		opts.Take = e.cfg.MaxTake
	}
	page = &Page[*models.Post]{Items: []*models.Post{}, Options: opts}

	q := repository.PostQuery{
		Since:    opts.Cutoff(e.now()),
		Sort:     repository.SortNew,
		Offset:   opts.Skip,
		Limit:    opts.Take,
		ViewerID: viewerID,
	}
	if opts.SortBy == SortByTop {
		q.Sort = repository.SortTop
	}

	switch d.kind {
	case byCommunity:
		if _, err := e.communities.GetByID(ctx, d.communityIDs[0]); err != nil {
			return nil, notFound(err, "Community", d.communityIDs[0])
		}
		q.CommunityIDs = d.communityIDs
	case byCommunities:
		if len(d.communityIDs) == 0 {
			return page, nil
		}
		q.CommunityIDs = d.communityIDs
	case byAuthor:
		exists, err := e.users.Exists(ctx, d.authorID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, models.NewNotFoundError("User", d.authorID)
		}
		q.AuthorID = d.authorID
	case byAll:
	default:
		return nil, models.NewValidationError("listing source is required")
	}

	if opts.Take == 0 {
		return page, nil
	}
	posts, err := e.posts.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(posts) > 0 {
		if err := e.ledger.AnnotatePosts(ctx, viewerID, posts...); err != nil {
			return nil, err
		}
	}
	page.Items = posts
	return page, nil
}
