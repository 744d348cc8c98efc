// Command seed fills a development database with demo members and
// connections between them.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"alumninexus/server/internal/database"
	"alumninexus/server/internal/logger"
	"alumninexus/server/internal/models"
	"alumninexus/server/internal/repository"
	"alumninexus/server/internal/utils"

	"github.com/google/uuid"
	"github.com/icrowley/fake"
	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("seed")

type Options struct {
	DatabaseURL string        `long:"database-url" env:"DATABASE_URL" description:"Postgres connection string"`
	JWTSecret   string        `long:"jwt-secret" env:"JWT_SECRET" description:"print an access token for every member signed with this secret"`
	Count       int           `short:"n" long:"count" default:"12" description:"number of members to create"`
	Connections int           `long:"connections" default:"3" description:"connections each member starts, accepted or pending"`
	TokenTTL    time.Duration `long:"token-ttl" default:"24h" description:"lifetime of printed tokens"`
	LogLevel    string        `long:"log-level" default:"info" description:"set the logging level"`
}

func main() {
	godotenv.Load()

	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if ferr, ok := err.(*flags.Error); ok && ferr.Type == flags.ErrHelp {
			return
		}
		os.Exit(1)
	}
	logger.Setup(opts.LogLevel, "")
	if opts.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, opts.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	profiles, err := seedProfiles(ctx, repository.NewProfileRepository(db.Gorm), opts.Count)
	if err != nil {
		log.Fatalf("Failed to create profiles: %v", err)
	}
	created, err := seedConnections(ctx, repository.NewConnectionRepository(db.Gorm), profiles, opts.Connections)
	if err != nil {
		log.Fatalf("Failed to create connections: %v", err)
	}
	log.Infof("Seeded %d members and %d connections", len(profiles), created)

	if opts.JWTSecret == "" {
		return
	}
	for _, p := range profiles {
		token, err := utils.GenerateToken([]byte(opts.JWTSecret), p.ID, "", opts.TokenTTL)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		fmt.Printf("%s\t%s\t%s\n", p.ID, *p.Username, token)
	}
}

func seedProfiles(ctx context.Context, repo repository.ProfileRepository, count int) ([]models.Profile, error) {
	out := make([]models.Profile, 0, count)
	for i := 0; i < count; i++ {
		name := fake.FirstName() + " " + fake.LastName()
		username := utils.GenerateUsername(name)
		bio := fake.JobTitle() + " at " + fake.Company()
		now := time.Now().UTC()

		p := models.Profile{
			ID:        uuid.NewString(),
			FullName:  name,
			Username:  &username,
			Bio:       &bio,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.Create(ctx, &p); err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// seedConnections links each member to up to perMember later members. One in
// three links is left pending.
func seedConnections(ctx context.Context, repo repository.ConnectionRepository, profiles []models.Profile, perMember int) (int, error) {
	created := 0
	for i, requester := range profiles {
		for j := i + 1; j < len(profiles) && j <= i+perMember; j++ {
			status := models.ConnectionAccepted
			if rand.Intn(3) == 0 {
				status = models.ConnectionPending
			}
			now := time.Now().UTC()
			err := repo.Create(ctx, &models.Connection{
				ID:          uuid.NewString(),
				RequesterID: requester.ID,
				RecipientID: profiles[j].ID,
				Status:      status,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err != nil {
				return created, err
			}
			created++
		}
	}
	return created, nil
}
