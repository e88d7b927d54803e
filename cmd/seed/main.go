package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"taskhub/internal/auth"
	"taskhub/internal/config"
	"taskhub/internal/db"
	apperrors "taskhub/internal/errors"
	"taskhub/internal/logger"
	"taskhub/internal/model"
	"taskhub/internal/repository"
	"taskhub/internal/service"
)

// SeedUserData represents one user in the seed feed.
type SeedUserData struct {
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func main() {
	cfg := config.Load()
	log := logger.New(cfg.AppEnv)
	log.Info("starting seed")

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Error("database init", slog.Any("error", err))
		os.Exit(1)
	}
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		log.Error("auto-migrate", slog.Any("error", err))
		os.Exit(1)
	}

	var users []SeedUserData
	if cfg.SeedAdminEmail != "" {
		users = append(users, SeedUserData{
			Name:     "Admin",
			Surname:  "Taskhub",
			Email:    cfg.SeedAdminEmail,
			Role:     string(model.RoleAdmin),
			Password: cfg.SeedAdminPassword,
		})
	}
	if cfg.SeedUsersURL != "" {
		log.Info("fetching users", slog.String("url", cfg.SeedUsersURL))
		fetched, err := fetchUsers(cfg.SeedUsersURL)
		if err != nil {
			log.Error("fetch users", slog.Any("error", err))
			os.Exit(1)
		}
		users = append(users, fetched...)
	}
	if len(users) == 0 {
		log.Warn("nothing to seed, set SEED_ADMIN_EMAIL or SEED_USERS_URL")
		return
	}

	svc := service.NewUserService(
		repository.NewUserRepository(gormDB),
		nil,
		auth.NewTokenStore(nil),
		auth.NewPasswordHasher(cfg.BcryptCost),
		log,
	)
	created, skipped, err := seedUsers(context.Background(), svc, users)
	if err != nil {
		log.Error("seed users", slog.Any("error", err))
		os.Exit(1)
	}
	log.Info("seed completed", slog.Int("created", created), slog.Int("skipped", skipped))
}

// fetchUsers fetches user data from a JSON feed.
func fetchUsers(url string) ([]SeedUserData, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch from feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var users []SeedUserData
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	return users, nil
}

// seedUsers creates every user that does not exist yet. Existing emails are left untouched.
func seedUsers(ctx context.Context, svc service.UserService, users []SeedUserData) (created, skipped int, err error) {
	for _, u := range users {
		_, err := svc.CreateUser(ctx, service.CreateUserInput{
			Name:            u.Name,
			Surname:         u.Surname,
			Email:           u.Email,
			Role:            u.Role,
			Password:        u.Password,
			PasswordConfirm: u.Password,
		})
		switch {
		case err == nil:
			created++
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			skipped++
		default:
			return created, skipped, fmt.Errorf("create %s: %w", u.Email, err)
		}
	}
	return created, skipped, nil
}
