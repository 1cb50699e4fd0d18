package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"agora/internal/models"
	"agora/internal/repository"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures/*.yaml
var fixtureFS embed.FS

// Fixture is a hand-written data set: named users and communities with
// posts, comment threads and votes addressed by username.
type Fixture struct {
	Users       []FixtureUser      `yaml:"users"`
	Communities []FixtureCommunity `yaml:"communities"`
}

type FixtureUser struct {
	Username    string `yaml:"username"`
	DisplayName string `yaml:"display_name"`
}

type FixtureCommunity struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Private     bool          `yaml:"private"`
	Owner       string        `yaml:"owner"`
	Members     []string      `yaml:"members"`
	Posts       []FixturePost `yaml:"posts"`
}

type FixturePost struct {
	Author   string           `yaml:"author"`
	Title    string           `yaml:"title"`
	Content  string           `yaml:"content"`
	Up       []string         `yaml:"up"`
	Down     []string         `yaml:"down"`
	Comments []FixtureComment `yaml:"comments"`
}

type FixtureComment struct {
	Author  string           `yaml:"author"`
	Content string           `yaml:"content"`
	Up      []string         `yaml:"up"`
	Down    []string         `yaml:"down"`
	Replies []FixtureComment `yaml:"replies"`
	// Children nest as comments; Replies stay flat under this comment.
	Children []FixtureComment `yaml:"children"`
}

// ParseFixture decodes a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fx, nil
}

// LoadFixture reads a fixture by name from fsys, falling back to the
// embedded fixtures when fsys is nil.
func LoadFixture(fsys fs.FS, name string) (*Fixture, error) {
	if fsys == nil {
		fsys = fixtureFS
		name = "fixtures/" + name
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", name, err)
	}
	return ParseFixture(data)
}

// ApplyFixture inserts fx. Users that already exist are reused, so built-in
// fixtures can be applied on every start; communities that exist are skipped.
func ApplyFixture(ctx context.Context, db *gorm.DB, fx *Fixture) (*Result, error) {
	res := &Result{}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a := &fixtureApplier{
			f:     NewFactory(tx, 1),
			users: map[string]*models.User{},
			res:   res,
		}
		for _, u := range fx.Users {
			if _, err := a.ensureUser(ctx, u.Username, u.DisplayName); err != nil {
				return err
			}
		}
		for _, c := range fx.Communities {
			if err := a.community(ctx, c); err != nil {
				return fmt.Errorf("community %s: %w", c.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type fixtureApplier struct {
	f     *Factory
	users map[string]*models.User
	res   *Result
}

func (a *fixtureApplier) ensureUser(ctx context.Context, username, displayName string) (*models.User, error) {
	if u, ok := a.users[username]; ok {
		return u, nil
	}
	u, err := a.f.users.GetByUsername(ctx, username)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		u = &models.User{Username: username, DisplayName: displayName}
		if err := a.f.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", username, err)
		}
		a.res.Users++
	default:
		return nil, err
	}
	a.users[username] = u
	return u, nil
}

func (a *fixtureApplier) user(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, errors.New("fixture entry is missing a username")
	}
	return a.ensureUser(ctx, username, "")
}

func (a *fixtureApplier) community(ctx context.Context, fc FixtureCommunity) error {
	owner, err := a.user(ctx, fc.Owner)
	if err != nil {
		return err
	}
	community := &models.Community{
		Name:        fc.Name,
		Description: fc.Description,
		IsPrivate:   fc.Private,
		OwnerID:     owner.ID,
	}
	if err := a.f.communities.Create(ctx, community); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return err
	}
	a.res.Communities++

	for _, name := range fc.Members {
		member, err := a.user(ctx, name)
		if err != nil {
			return err
		}
		if err := a.f.Join(ctx, community, member); err != nil && !errors.Is(err, repository.ErrAlreadyMember) {
			return err
		}
	}

	for _, fp := range fc.Posts {
		author, err := a.user(ctx, fp.Author)
		if err != nil {
			return err
		}
		post, err := a.f.CreatePost(ctx, author, community, 7, func(p *models.Post) {
			p.Title = fp.Title
			if fp.Content != "" {
				p.Content = fp.Content
			}
		})
		if err != nil {
			return err
		}
		a.res.Posts++
		if err := a.votes(ctx, models.PostTarget(post.ID), fp.Up, fp.Down); err != nil {
			return err
		}
		for _, fc := range fp.Comments {
			if err := a.comment(ctx, post, nil, fc); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *fixtureApplier) comment(ctx context.Context, post *models.Post, parent *models.Comment, fc FixtureComment) error {
	author, err := a.user(ctx, fc.Author)
	if err != nil {
		return err
	}
	comment, err := a.f.CreateComment(ctx, author, post, parent)
	if err != nil {
		return err
	}
	if fc.Content != "" {
		comment.Content = fc.Content
		if err := a.f.comments.Update(ctx, comment); err != nil {
			return err
		}
	}
	a.res.Comments++
	if err := a.votes(ctx, models.CommentTarget(comment.ID), fc.Up, fc.Down); err != nil {
		return err
	}

	for _, fr := range fc.Replies {
		replier, err := a.user(ctx, fr.Author)
		if err != nil {
			return err
		}
		reply, err := a.f.CreateReply(ctx, replier, comment)
		if err != nil {
			return err
		}
		if fr.Content != "" {
			reply.Content = fr.Content
			if err := a.f.replies.Update(ctx, reply); err != nil {
				return err
			}
		}
		a.res.Replies++
		if err := a.votes(ctx, models.ReplyTarget(reply.ID), fr.Up, fr.Down); err != nil {
			return err
		}
	}

	for _, child := range fc.Children {
		if err := a.comment(ctx, post, comment, child); err != nil {
			return err
		}
	}
	return nil
}

func (a *fixtureApplier) votes(ctx context.Context, target models.VoteTarget, up, down []string) error {
	cast := func(names []string, isUp bool) error {
		for _, name := range names {
			voter, err := a.user(ctx, name)
			if err != nil {
				return err
			}
			if err := a.f.CastVote(ctx, voter, target, isUp); err != nil {
				return fmt.Errorf("vote by %s on %s: %w", name, target, err)
			}
			a.res.Votes++
		}
		return nil
	}
	if err := cast(up, true); err != nil {
		return err
	}
	return cast(down, false)
}
