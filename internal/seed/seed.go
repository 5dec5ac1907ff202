package seed

import (
	"fmt"
	"log"

	"ripple/internal/models"

	"gorm.io/gorm"
)

// Seed populates the database with demo data: users, a follow mesh,
// posts with comments and likes, and a handful of DM threads.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	if opts.ShouldClean {
		if err := clearData(db); err != nil {
			log.Println("Warning: could not clear all existing data, continuing anyway...")
		}
	}

	f := NewFactory(db, opts)

	users, err := createUsers(f, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("created %d users", len(users))

	posts, err := createPosts(f, users, opts.NumPosts)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("created %d posts", len(posts))

	if err := seedFollowMesh(f, users); err != nil {
		return fmt.Errorf("failed to seed follow mesh: %w", err)
	}
	if err := seedEngagement(f, users, posts); err != nil {
		return fmt.Errorf("failed to seed likes/comments: %w", err)
	}
	if err := seedConversations(f, users); err != nil {
		return fmt.Errorf("failed to seed conversations: %w", err)
	}

	log.Println("Database seeding completed")
	return nil
}

func clearData(db *gorm.DB) error {
	log.Println("Clearing existing data...")
	sql := `TRUNCATE TABLE comments, likes, follows, messages, posts, users RESTART IDENTITY CASCADE;`
	return db.Exec(sql).Error
}

func createUsers(f *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)

	// A few well-known accounts so the login page demo always works.
	if count >= 3 {
		for _, name := range []string{"ripple", "demo", "test"} {
			name := name
			user, err := f.CreateUser(func(u *models.User) {
				u.DisplayName = name
				u.Email = fmt.Sprintf("%s@example.com", name)
				u.Bio = "One of the originals."
			})
			if err != nil {
				// Likely already seeded; skip quietly.
				continue
			}
			users = append(users, user)
		}
	}

	for i := len(users); i < count; i++ {
		user, err := f.CreateUser(func(u *models.User) {
			// Suffix keeps generated names unique across runs.
			u.DisplayName = fmt.Sprintf("%s%d", u.DisplayName, i)
		})
		if err != nil {
			log.Printf("failed to create user %d: %v", i, err)
			continue
		}
		users = append(users, user)

		if i > 0 && i%100 == 0 {
			log.Printf("created %d users...", i)
		}
	}

	return users, nil
}

func createPosts(f *Factory, users []*models.User, count int) ([]*models.Post, error) {
	if len(users) == 0 || count == 0 {
		return nil, nil
	}

	posts := make([]*models.Post, 0, count)
	for i := 0; i < count; i++ {
		author := users[f.rng.Intn(len(users))]
		posts = append(posts, f.BuildPost(author))
	}

	// Chunked batches keep the insert statements reasonably sized.
	const chunk = 200
	for start := 0; start < len(posts); start += chunk {
		end := start + chunk
		if end > len(posts) {
			end = len(posts)
		}
		if err := f.CreatePostsBatch(posts[start:end]); err != nil {
			return nil, err
		}
	}

	return posts, nil
}

// seedFollowMesh gives every user a handful of outgoing follows so feeds,
// counts and suggestions all have data to show.
func seedFollowMesh(f *Factory, users []*models.User) error {
	if len(users) < 2 || f.opts.DryRun {
		return nil
	}

	for _, follower := range users {
		outgoing := 1 + f.rng.Intn(5)
		seen := map[uint]struct{}{follower.ID: {}}
		for i := 0; i < outgoing; i++ {
			target := users[f.rng.Intn(len(users))]
			if _, dup := seen[target.ID]; dup {
				continue
			}
			seen[target.ID] = struct{}{}
			if err := f.CreateFollow(follower, target); err != nil {
				return err
			}
		}
	}
	return nil
}

func seedEngagement(f *Factory, users []*models.User, posts []*models.Post) error {
	if len(users) == 0 || len(posts) == 0 || f.opts.DryRun {
		return nil
	}

	for _, post := range posts {
		likes := f.rng.Intn(4)
		seen := map[uint]struct{}{}
		for i := 0; i < likes; i++ {
			user := users[f.rng.Intn(len(users))]
			if _, dup := seen[user.ID]; dup {
				continue
			}
			seen[user.ID] = struct{}{}
			if err := f.CreateLike(user, post); err != nil {
				return err
			}
		}

		if f.rng.Float32() < 0.5 {
			commenter := users[f.rng.Intn(len(users))]
			if _, err := f.CreateComment(commenter, post); err != nil {
				return err
			}
		}
	}
	return nil
}

// seedConversations creates short DM threads between random user pairs.
func seedConversations(f *Factory, users []*models.User) error {
	if len(users) < 2 || f.opts.DryRun {
		return nil
	}

	threads := len(users) / 2
	for i := 0; i < threads; i++ {
		a := users[f.rng.Intn(len(users))]
		b := users[f.rng.Intn(len(users))]
		for b.ID == a.ID {
			b = users[f.rng.Intn(len(users))]
		}

		turns := 2 + f.rng.Intn(6)
		for turn := 0; turn < turns; turn++ {
			sender, receiver := a, b
			if turn%2 == 1 {
				sender, receiver = b, a
			}
			if _, err := f.CreateMessage(sender, receiver); err != nil {
				return err
			}
		}
	}
	return nil
}
